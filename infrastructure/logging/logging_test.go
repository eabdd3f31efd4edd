package logging

import (
	"bytes"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/felixgeelhaar/heapscope/domain/agent"
)

// testLogger creates a logger that writes to a buffer for testing
func testLogger() (*bolt.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger := New(Config{Level: "trace", Format: "json", Output: buf})
	return logger, buf
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	config := DefaultConfig()
	if config.Level != "info" {
		t.Errorf("Level = %s, want info", config.Level)
	}
	if config.Format != "console" {
		t.Errorf("Format = %s, want console", config.Format)
	}
	if config.Output != os.Stderr {
		t.Errorf("Output = %v, want os.Stderr", config.Output)
	}

	prod := ProductionConfig()
	if prod.Format != "json" {
		t.Errorf("ProductionConfig().Format = %s, want json", prod.Format)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected bolt.Level
	}{
		{"trace", bolt.TRACE},
		{"debug", bolt.DEBUG},
		{"info", bolt.INFO},
		{"WARN", bolt.WARN},
		{"error", bolt.ERROR},
		{"unknown", bolt.INFO},
		{"", bolt.INFO},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			if result := parseLevel(tt.input); result != tt.expected {
				t.Errorf("parseLevel(%s) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		field Field
		want  string
	}{
		{"agent id", AgentID("a-1"), `"agent_id":"a-1"`},
		{"state", State(agent.StateStarted), `"state":"started"`},
		{"from state", FromState(agent.StateCreated), `"from_state":"created"`},
		{"to state", ToState(agent.StateStopping), `"to_state":"stopping"`},
		{"command", Command(agent.CommandTriggerGC), `"command":"trigger_gc"`},
		{"task", Task("gc_stats"), `"task":"gc_stats"`},
		{"event", Event("gc_stats"), `"event":"gc_stats"`},
		{"endpoint", Endpoint("publish", ":5555"), `"publish_endpoint":":5555"`},
		{"transport", Transport("websocket"), `"transport":"websocket"`},
		{"duration", Duration(100 * time.Millisecond), `"duration_ms":100`},
		{"bytes", Bytes(42), `"bytes":42`},
		{"count", Count(3), `"count":3`},
		{"enabled", Enabled(true), `"enabled":true`},
		{"component", Component("agent"), `"component":"agent"`},
		{"operation", Operation("bind"), `"operation":"bind"`},
		{"str", Str("k", "v"), `"k":"v"`},
		{"int", Int("n", 7), `"n":7`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, buf := testLogger()
			tt.field(logger.Info()).Msg("test")

			if !bytes.Contains(buf.Bytes(), []byte(tt.want)) {
				t.Errorf("expected %s in output: %s", tt.want, buf.String())
			}
		})
	}
}

func TestErrorField(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	ErrorField(errors.New("bind refused"))(logger.Error()).Msg("failed")
	if !bytes.Contains(buf.Bytes(), []byte("bind refused")) {
		t.Errorf("expected error text in output: %s", buf.String())
	}

	logger, buf = testLogger()
	ErrorField(nil)(logger.Info()).Msg("ok")
	if bytes.Contains(buf.Bytes(), []byte(`"error"`)) {
		t.Errorf("nil error should add no field: %s", buf.String())
	}
}

func TestLogEvent_Chaining(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	NewEvent(logger.Warn()).
		Add(Component("loop")).
		Add(Task("flush")).
		Msg("task failed")

	out := buf.String()
	for _, want := range []string{`"component":"loop"`, `"task":"flush"`, "task failed"} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Errorf("expected %s in output: %s", want, out)
		}
	}
}
