package config

import (
	"errors"
	"testing"

	domainconfig "github.com/felixgeelhaar/heapscope/domain/config"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("HEAPSCOPE_HOST", "10.0.0.5")
	t.Setenv("HEAPSCOPE_EMPTY", "")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bracket syntax", "${HEAPSCOPE_HOST}", "10.0.0.5"},
		{"dollar syntax", "$HEAPSCOPE_HOST", "10.0.0.5"},
		{"embedded in text", "host: ${HEAPSCOPE_HOST}:5555", "host: 10.0.0.5:5555"},
		{"default used when unset", "${HEAPSCOPE_UNSET:-127.0.0.1}", "127.0.0.1"},
		{"default used when empty", "${HEAPSCOPE_EMPTY:-fallback}", "fallback"},
		{"default ignored when set", "${HEAPSCOPE_HOST:-127.0.0.1}", "10.0.0.5"},
		{"unset becomes empty", "[${HEAPSCOPE_UNSET}]", "[]"},
		{"no variables", "pub_port: 5555", "pub_port: 5555"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandEnv(tt.input); got != tt.want {
				t.Errorf("ExpandEnv(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestExpandEnvStrict(t *testing.T) {
	t.Setenv("HEAPSCOPE_SET", "x")

	if _, err := ExpandEnvStrict("${HEAPSCOPE_SET}"); err != nil {
		t.Fatalf("ExpandEnvStrict() error = %v", err)
	}

	_, err := ExpandEnvStrict("${HEAPSCOPE_MISSING} $HEAPSCOPE_ALSO_MISSING")
	if !errors.Is(err, domainconfig.ErrMissingEnvVar) {
		t.Fatalf("ExpandEnvStrict() error = %v, want ErrMissingEnvVar", err)
	}
}

func TestExpand_RequiredVariable(t *testing.T) {
	e := &envExpander{}
	_, err := e.Expand("${HEAPSCOPE_REDIS_ADDR:?redis address required}")
	if !errors.Is(err, domainconfig.ErrMissingEnvVar) {
		t.Fatalf("Expand() error = %v, want ErrMissingEnvVar", err)
	}
	if len(e.missing) != 1 || e.missing[0] != "HEAPSCOPE_REDIS_ADDR: redis address required" {
		t.Errorf("missing = %v", e.missing)
	}
}
