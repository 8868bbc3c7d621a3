package interview

import (
	"testing"

	"github.com/evermind-ai/interview-gateway/internal/config"
)

func registryTestServices() *Services {
	return &Services{
		Config: &config.Config{
			HeartbeatIntervalMs:      30000,
			TestTranscriptIntervalMs: 10000,
			MaxQuestions:             5,
		},
		LLM: &fakeAdapter{},
	}
}

func TestRegistryAddAndGet(t *testing.T) {
	registry := NewRegistry()
	services := registryTestServices()

	s := newSession(services, registry)
	registry.add(s)

	if registry.Len() != 1 {
		t.Fatalf("Len = %d, want 1", registry.Len())
	}
	got, ok := registry.Get(s.ID())
	if !ok || got != s {
		t.Fatalf("Get(%q) = %v, %v; want the added session", s.ID(), got, ok)
	}
}

func TestRegistryDestroyRemovesAndTearsDown(t *testing.T) {
	registry := NewRegistry()
	services := registryTestServices()

	s := newSession(services, registry)
	registry.add(s)

	registry.Destroy(s.ID())

	if registry.Len() != 0 {
		t.Fatalf("Len = %d after Destroy, want 0", registry.Len())
	}
	select {
	case <-s.ctx.Done():
	default:
		t.Fatal("session context still live after Destroy")
	}
}

func TestRegistryDestroyIsIdempotent(t *testing.T) {
	registry := NewRegistry()
	services := registryTestServices()

	s := newSession(services, registry)
	registry.add(s)

	registry.Destroy(s.ID())
	registry.Destroy(s.ID())
	registry.Destroy("no-such-session")

	if registry.Len() != 0 {
		t.Fatalf("Len = %d, want 0", registry.Len())
	}
}

func TestRegistryTeardownRemovesSelf(t *testing.T) {
	registry := NewRegistry()
	services := registryTestServices()

	s := newSession(services, registry)
	registry.add(s)

	s.teardown()

	if registry.Len() != 0 {
		t.Fatalf("Len = %d after teardown, want 0", registry.Len())
	}
}
