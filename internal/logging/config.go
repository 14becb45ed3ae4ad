package logging

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/legisrag/internal/config"
)

// TraceLevel sits below Debug for per-segment and per-request detail.
const TraceLevel = zapcore.Level(-2)

// Config holds logging configuration.
type Config struct {
	Level  zapcore.Level
	Format string // json or console
	Output OutputConfig

	Sampling SamplingConfig

	// Caller adds the calling file and line to each entry.
	Caller bool
	// StacktraceLevel is the lowest level that records a stacktrace.
	StacktraceLevel zapcore.Level

	// Fields are added to every entry.
	Fields map[string]string

	Redaction RedactionConfig
}

// OutputConfig controls where entries go.
type OutputConfig struct {
	Stdout bool
	// Stderr writes the console output to stderr instead, keeping stdout
	// free for command output or the MCP stdio transport.
	Stderr bool
	OTEL   bool
}

// SamplingConfig limits entries below error level. Within each Tick the
// first Initial entries with the same level and message are kept, then one
// in Thereafter.
type SamplingConfig struct {
	Enabled    bool
	Tick       time.Duration
	Initial    int
	Thereafter int
}

// RedactionConfig lists field keys whose values are always hidden and
// value patterns hidden wherever they appear.
type RedactionConfig struct {
	Enabled  bool
	Keys     []string
	Patterns []string
}

// Patterns for Brazilian taxpayer ids, formatted or bare digits inside
// invoice text.
const (
	cpfPattern  = `\b\d{3}\.?\d{3}\.?\d{3}-?\d{2}\b`
	cnpjPattern = `\b\d{2}\.?\d{3}\.?\d{3}/?\d{4}-?\d{2}\b`
)

// NewDefaultConfig returns the production defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  zapcore.InfoLevel,
		Format: "json",
		Output: OutputConfig{Stdout: true},
		Sampling: SamplingConfig{
			Enabled:    true,
			Tick:       time.Second,
			Initial:    100,
			Thereafter: 10,
		},
		Caller:          true,
		StacktraceLevel: zapcore.ErrorLevel,
		Fields:          map[string]string{"service": "legisrag"},
		Redaction: RedactionConfig{
			Enabled: true,
			Keys: []string{
				"api_key", "authorization", "password", "secret", "token",
				"cpf", "cnpj", "request_digest",
			},
			Patterns: []string{
				`(?i)bearer\s+\S+`,
				`(?i)api[_-]?key[=:]\s*\S+`,
				`AIza[0-9A-Za-z_-]{35}`,
				cnpjPattern,
				cpfPattern,
			},
		},
	}
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("format must be 'json' or 'console', got %q", c.Format)
	}
	if !c.Output.Stdout && !c.Output.Stderr && !c.Output.OTEL {
		return fmt.Errorf("at least one output must be enabled (stdout, stderr or otel)")
	}
	if c.Sampling.Enabled {
		if c.Sampling.Tick <= 0 {
			return fmt.Errorf("sampling tick must be > 0 when sampling enabled")
		}
		if c.Sampling.Initial < 0 || c.Sampling.Thereafter < 0 {
			return fmt.Errorf("sampling counts must be >= 0")
		}
	}
	if c.Redaction.Enabled {
		for _, p := range c.Redaction.Patterns {
			if len(p) > maxPatternLen {
				return fmt.Errorf("redaction pattern too long (max %d chars): %q", maxPatternLen, p)
			}
			if _, err := regexp.Compile(p); err != nil {
				return fmt.Errorf("invalid redaction pattern %q: %w", p, err)
			}
		}
	}
	for k, v := range c.Fields {
		if k == "" || v == "" {
			return fmt.Errorf("constant field %q must have a non-empty key and value", k)
		}
	}
	return nil
}

// ParseLevel parses a level name, accepting "trace" besides zap's names.
func ParseLevel(name string) (zapcore.Level, error) {
	if strings.EqualFold(name, "trace") {
		return TraceLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(name))); err != nil {
		return zapcore.InfoLevel, err
	}
	return l, nil
}

// FromConfig returns the default logging config with the level and format
// from c applied.
func FromConfig(c config.LoggingConfig) (*Config, error) {
	cfg := NewDefaultConfig()
	if c.Level != "" {
		level, err := ParseLevel(c.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", c.Level, err)
		}
		cfg.Level = level
	}
	if c.Format != "" {
		cfg.Format = c.Format
	}
	return cfg, cfg.Validate()
}
