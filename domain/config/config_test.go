package config

import (
	"encoding/json"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDuration_JSON(t *testing.T) {
	tests := []struct {
		name     string
		duration Duration
		wantJSON string
	}{
		{"zero", Duration(0), `"0s"`},
		{"tick", Duration(50 * time.Millisecond), `"50ms"`},
		{"stats", Duration(5 * time.Second), `"5s"`},
		{"minute and a half", Duration(90 * time.Second), `"1m30s"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.duration)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(data) != tt.wantJSON {
				t.Errorf("Marshal() = %s, want %s", data, tt.wantJSON)
			}

			var got Duration
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if got != tt.duration {
				t.Errorf("Unmarshal() = %v, want %v", got, tt.duration)
			}
		})
	}
}

func TestDuration_UnmarshalInvalid(t *testing.T) {
	var d Duration
	if err := json.Unmarshal([]byte(`"soon"`), &d); err == nil {
		t.Error("json.Unmarshal() expected error for invalid duration")
	}
	if err := yaml.Unmarshal([]byte(`later`), &d); err == nil {
		t.Error("yaml.Unmarshal() expected error for invalid duration")
	}
	if err := json.Unmarshal([]byte(`null`), &d); err != nil {
		t.Errorf("json.Unmarshal(null) error = %v", err)
	}
}

func TestAgentConfig_YAML(t *testing.T) {
	input := `
name: worker
transport:
  kind: redis
  redis:
    address: redis:6379
    channel: events
    command_key: commands
schedule:
  tick_interval: 20ms
  stats_interval: 2s
profiling:
  enable_on_start: true
`
	var cfg AgentConfig
	if err := yaml.Unmarshal([]byte(input), &cfg); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}

	if cfg.Transport.Kind != TransportRedis {
		t.Errorf("Transport.Kind = %s, want redis", cfg.Transport.Kind)
	}
	if cfg.Schedule.TickInterval.Duration() != 20*time.Millisecond {
		t.Errorf("TickInterval = %v, want 20ms", cfg.Schedule.TickInterval.Duration())
	}
	if cfg.Schedule.StatsInterval.Duration() != 2*time.Second {
		t.Errorf("StatsInterval = %v, want 2s", cfg.Schedule.StatsInterval.Duration())
	}
	if !cfg.Profiling.EnableOnStart {
		t.Error("Profiling.EnableOnStart = false, want true")
	}
	if got := cfg.Transport.PublishEndpoint(); got != "events" {
		t.Errorf("PublishEndpoint() = %s, want events", got)
	}
	if got := cfg.Transport.RequestEndpoint(); got != "commands" {
		t.Errorf("RequestEndpoint() = %s, want commands", got)
	}
}

func TestAgentConfig_ApplyDefaults(t *testing.T) {
	cfg := AgentConfig{Schedule: ScheduleConfig{StatsInterval: Duration(time.Second)}}
	cfg.ApplyDefaults()

	if cfg.Transport.Kind != TransportWebSocket {
		t.Errorf("Transport.Kind = %s, want websocket", cfg.Transport.Kind)
	}
	if cfg.Transport.PubPort != DefaultPubPort || cfg.Transport.RequestPort != DefaultRequestPort {
		t.Errorf("ports = %d/%d, want %d/%d", cfg.Transport.PubPort, cfg.Transport.RequestPort, DefaultPubPort, DefaultRequestPort)
	}
	if cfg.Schedule.StatsInterval.Duration() != time.Second {
		t.Errorf("StatsInterval overwritten: %v", cfg.Schedule.StatsInterval.Duration())
	}
	if cfg.Schedule.FlushInterval.Duration() != DefaultFlushInterval {
		t.Errorf("FlushInterval = %v, want %v", cfg.Schedule.FlushInterval.Duration(), DefaultFlushInterval)
	}
	if cfg.Schedule.TickInterval.Duration() != DefaultTickInterval {
		t.Errorf("TickInterval = %v, want %v", cfg.Schedule.TickInterval.Duration(), DefaultTickInterval)
	}
	if got := cfg.Transport.PublishEndpoint(); got != "127.0.0.1:5555" {
		t.Errorf("PublishEndpoint() = %s, want 127.0.0.1:5555", got)
	}
	if got := cfg.Transport.RequestEndpoint(); got != "127.0.0.1:5556" {
		t.Errorf("RequestEndpoint() = %s, want 127.0.0.1:5556", got)
	}
}
