package agent

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		raw  string
		want Command
	}{
		{"trigger_gc", CommandTriggerGC},
		{"objectspace_snapshot", CommandObjectSpaceSnapshot},
		{"", CommandNone},
		{" trigger_gc\n", Command(" trigger_gc\n")},
		{"   ", Command("   ")},
		{"TRIGGER_GC", Command("TRIGGER_GC")},
		{"future_command", Command("future_command")},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := ParseCommand(tt.raw); got != tt.want {
				t.Errorf("ParseCommand(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseCommand_ExactMatch(t *testing.T) {
	for _, raw := range []string{" trigger_gc", "trigger_gc\n", "\tstart_memory_profile "} {
		if c := ParseCommand(raw); c.IsKnown() {
			t.Errorf("ParseCommand(%q) = known command %q", raw, c)
		}
	}
}

func TestCommand_IsKnown(t *testing.T) {
	for _, c := range KnownCommands() {
		if !c.IsKnown() {
			t.Errorf("Command(%q).IsKnown() = false, want true", c)
		}
		if c.IsNone() {
			t.Errorf("Command(%q).IsNone() = true, want false", c)
		}
	}

	unknown := []Command{CommandNone, "Trigger_GC", "gc", "start_cpu_profile"}
	for _, c := range unknown {
		if c.IsKnown() {
			t.Errorf("Command(%q).IsKnown() = true, want false", c)
		}
	}
}

func TestCommand_IsNone(t *testing.T) {
	if !CommandNone.IsNone() {
		t.Error("CommandNone.IsNone() = false, want true")
	}
	if CommandTriggerGC.IsNone() {
		t.Error("CommandTriggerGC.IsNone() = true, want false")
	}
}
