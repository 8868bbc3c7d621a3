package asr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/evermind-ai/interview-gateway/internal/config"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func testConfig(url string) *config.Config {
	return &config.Config{
		ASRAPIKey:                  "test-key",
		ASRURL:                     url,
		ASRLanguage:                "en",
		ASRSampleRate:              16000,
		ASREnablePartials:          true,
		ReconnectMaxAttempts:       1,
		ReconnectBackoff:           10,
		CircuitBreakerMaxFailures:  5,
		CircuitBreakerResetTimeout: 30,
	}
}

// fakeRecognizer is an in-process stand-in for the upstream ASR service.
type fakeRecognizer struct {
	t *testing.T

	start  chan map[string]any // StartRecognition frames
	audio  chan []byte         // binary audio frames
	stop   chan map[string]any // StopRecognition frames
	conn   chan *websocket.Conn
	server *httptest.Server
}

func newFakeRecognizer(t *testing.T) *fakeRecognizer {
	f := &fakeRecognizer{
		t:     t,
		start: make(chan map[string]any, 1),
		audio: make(chan []byte, 10),
		stop:  make(chan map[string]any, 1),
		conn:  make(chan *websocket.Conn, 1),
	}

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("expected bearer credential, got %q", got)
		}

		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		f.conn <- conn

		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType == websocket.BinaryMessage {
				f.audio <- data
				continue
			}

			var frame map[string]any
			if err := json.Unmarshal(data, &frame); err != nil {
				t.Errorf("server received invalid JSON: %v", err)
				continue
			}
			switch frame["message"] {
			case "StartRecognition":
				f.start <- frame
			case "StopRecognition":
				f.stop <- frame
			}
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeRecognizer) wsURL() string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http")
}

func (f *fakeRecognizer) send(t *testing.T, frame any) {
	t.Helper()
	select {
	case conn := <-f.conn:
		f.conn <- conn
		if err := conn.WriteJSON(frame); err != nil {
			t.Fatalf("server write failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("no upstream connection established")
	}
}

func waitEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		if !ok {
			t.Fatal("events channel closed unexpectedly")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestDial_SendsStartRecognition(t *testing.T) {
	fake := newFakeRecognizer(t)

	client, err := Dial(context.Background(), testConfig(fake.wsURL()), zerolog.Nop())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Stop()

	select {
	case frame := <-fake.start:
		af, ok := frame["audio_format"].(map[string]any)
		if !ok {
			t.Fatalf("missing audio_format in %v", frame)
		}
		if af["type"] != "raw" || af["encoding"] != "pcm_f32le" {
			t.Errorf("unexpected audio format: %v", af)
		}
		if af["sample_rate"] != float64(16000) {
			t.Errorf("expected sample_rate 16000, got %v", af["sample_rate"])
		}
		tc, ok := frame["transcription_config"].(map[string]any)
		if !ok {
			t.Fatalf("missing transcription_config in %v", frame)
		}
		if tc["language"] != "en" || tc["enable_partials"] != true {
			t.Errorf("unexpected transcription config: %v", tc)
		}
	case <-time.After(time.Second):
		t.Fatal("server never received StartRecognition")
	}
}

func TestClient_ForwardsAudio(t *testing.T) {
	fake := newFakeRecognizer(t)

	client, err := Dial(context.Background(), testConfig(fake.wsURL()), zerolog.Nop())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Stop()

	payload := []byte{0x01, 0x02, 0x03, 0x04}
	if err := client.SendAudio(payload); err != nil {
		t.Fatalf("SendAudio failed: %v", err)
	}

	select {
	case got := <-fake.audio:
		if string(got) != string(payload) {
			t.Errorf("expected audio %v, got %v", payload, got)
		}
	case <-time.After(time.Second):
		t.Fatal("server never received audio frame")
	}
}

func TestClient_EmitsPartialAndFinalEvents(t *testing.T) {
	fake := newFakeRecognizer(t)

	client, err := Dial(context.Background(), testConfig(fake.wsURL()), zerolog.Nop())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Stop()

	fake.send(t, map[string]any{
		"message":  "AddPartialTranscript",
		"metadata": map[string]any{"transcript": "hello", "segment_id": "S1"},
	})
	ev := waitEvent(t, client.Events())
	if ev.Final || ev.Text != "hello" || ev.SegmentID != "S1" {
		t.Errorf("unexpected partial event: %+v", ev)
	}

	fake.send(t, map[string]any{
		"message":  "AddTranscript",
		"metadata": map[string]any{"transcript": "hello world", "segment_id": "S1"},
	})
	ev = waitEvent(t, client.Events())
	if !ev.Final || ev.Text != "hello world" {
		t.Errorf("unexpected final event: %+v", ev)
	}
}

func TestClient_SynthesizesMissingSegmentID(t *testing.T) {
	fake := newFakeRecognizer(t)

	client, err := Dial(context.Background(), testConfig(fake.wsURL()), zerolog.Nop())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Stop()

	fake.send(t, map[string]any{
		"message":  "AddTranscript",
		"metadata": map[string]any{"transcript": "no id here"},
	})

	ev := waitEvent(t, client.Events())
	if !strings.HasPrefix(ev.SegmentID, "seg_") {
		t.Errorf("expected synthesized seg_ id, got %q", ev.SegmentID)
	}
}

func TestClient_IgnoresOtherEventsAndEmptyTranscripts(t *testing.T) {
	fake := newFakeRecognizer(t)

	client, err := Dial(context.Background(), testConfig(fake.wsURL()), zerolog.Nop())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Stop()

	fake.send(t, map[string]any{"message": "RecognitionStarted"})
	fake.send(t, map[string]any{"message": "AudioAdded", "seq_no": 1})
	fake.send(t, map[string]any{
		"message":  "AddTranscript",
		"metadata": map[string]any{"transcript": "", "segment_id": "S0"},
	})
	fake.send(t, map[string]any{
		"message":  "AddTranscript",
		"metadata": map[string]any{"transcript": "real one", "segment_id": "S1"},
	})

	ev := waitEvent(t, client.Events())
	if ev.SegmentID != "S1" || ev.Text != "real one" {
		t.Errorf("expected only the non-empty transcript, got %+v", ev)
	}
}

func TestClient_StopSendsStopRecognition(t *testing.T) {
	fake := newFakeRecognizer(t)

	client, err := Dial(context.Background(), testConfig(fake.wsURL()), zerolog.Nop())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	if err := client.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	select {
	case frame := <-fake.stop:
		if frame["message"] != "StopRecognition" {
			t.Errorf("unexpected stop frame: %v", frame)
		}
	case <-time.After(time.Second):
		t.Fatal("server never received StopRecognition")
	}

	// Stop is idempotent.
	if err := client.Stop(); err != nil {
		t.Errorf("second Stop returned error: %v", err)
	}

	// Frames sent after stop are dropped silently.
	if err := client.SendAudio([]byte{0x01}); err != nil {
		t.Errorf("SendAudio after stop should drop silently, got %v", err)
	}
}

func TestClient_EventsChannelClosesOnUpstreamDeath(t *testing.T) {
	fake := newFakeRecognizer(t)

	client, err := Dial(context.Background(), testConfig(fake.wsURL()), zerolog.Nop())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Stop()

	conn := <-fake.conn
	conn.Close()

	select {
	case _, ok := <-client.Events():
		if ok {
			t.Error("expected closed channel, got event")
		}
	case <-time.After(time.Second):
		t.Fatal("events channel did not close after upstream death")
	}
}

func TestDial_FailsWhenUnreachable(t *testing.T) {
	cfg := testConfig("ws://127.0.0.1:1")
	cfg.ReconnectMaxAttempts = 1

	if _, err := Dial(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Fatal("expected dial error for unreachable recognizer")
	}
}
