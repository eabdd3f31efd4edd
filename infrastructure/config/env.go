package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	domainconfig "github.com/felixgeelhaar/heapscope/domain/config"
)

var (
	// ${VAR}, ${VAR:-default}, ${VAR:?message}
	bracketPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-[^}]*|:\?[^}]*)?\}`)
	// $VAR
	simplePattern = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// envExpander expands environment variables in configuration text.
type envExpander struct {
	strict  bool
	missing []string
}

// Expand expands environment variables in the input string.
// Supported patterns:
//   - ${VAR} expands to the value of VAR
//   - ${VAR:-default} expands to VAR or "default" if unset or empty
//   - ${VAR:?message} fails if VAR is unset or empty
//   - $VAR simple expansion
func (e *envExpander) Expand(input string) (string, error) {
	e.missing = nil

	result := bracketPattern.ReplaceAllStringFunc(input, func(match string) string {
		name, modifier, _ := strings.Cut(match[2:len(match)-1], ":")
		value, exists := os.LookupEnv(name)

		switch {
		case strings.HasPrefix(modifier, "-"):
			if !exists || value == "" {
				return modifier[1:]
			}
		case strings.HasPrefix(modifier, "?"):
			if !exists || value == "" {
				e.missing = append(e.missing, fmt.Sprintf("%s: %s", name, modifier[1:]))
				return match
			}
		case !exists:
			e.lookupFailed(name)
			return ""
		}
		return value
	})

	result = simplePattern.ReplaceAllStringFunc(result, func(match string) string {
		name := match[1:]
		value, exists := os.LookupEnv(name)
		if !exists {
			e.lookupFailed(name)
			return ""
		}
		return value
	})

	if len(e.missing) > 0 {
		return "", fmt.Errorf("%w: %s", domainconfig.ErrMissingEnvVar, strings.Join(e.missing, ", "))
	}
	return result, nil
}

func (e *envExpander) lookupFailed(name string) {
	if e.strict {
		e.missing = append(e.missing, name)
	}
}

// ExpandEnv expands environment variables, replacing unset ones with "".
func ExpandEnv(input string) string {
	e := &envExpander{}
	result, _ := e.Expand(input)
	return result
}

// ExpandEnvStrict expands environment variables and returns an error for missing vars.
func ExpandEnvStrict(input string) (string, error) {
	e := &envExpander{strict: true}
	return e.Expand(input)
}
