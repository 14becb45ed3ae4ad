package logging

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Correlation identifies the request and analysis a log line belongs to.
type Correlation struct {
	RequestID  string
	AnalysisID string
	Category   string
}

type correlationKey struct{}

const (
	maxIDLen       = 128
	maxCategoryLen = 64
)

var (
	idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	// Categories may carry accents, spaces and slashes ("PIS/PASEP").
	categoryPattern = regexp.MustCompile(`^[\p{L}\p{N} _/-]+$`)
)

// CorrelationFrom returns the correlation stored in ctx, zero if none.
func CorrelationFrom(ctx context.Context) Correlation {
	c, _ := ctx.Value(correlationKey{}).(Correlation)
	return c
}

func withCorrelation(ctx context.Context, update func(*Correlation)) context.Context {
	c := CorrelationFrom(ctx)
	update(&c)
	return context.WithValue(ctx, correlationKey{}, c)
}

// WithRequestID tags ctx with a request id. It panics on an id that fails
// ValidateID; ids from clients must be checked first.
func WithRequestID(ctx context.Context, id string) context.Context {
	mustID("request id", id)
	return withCorrelation(ctx, func(c *Correlation) { c.RequestID = id })
}

// WithAnalysisID tags ctx with an analysis id. It panics like WithRequestID.
func WithAnalysisID(ctx context.Context, id string) context.Context {
	mustID("analysis id", id)
	return withCorrelation(ctx, func(c *Correlation) { c.AnalysisID = id })
}

// WithCategory tags ctx with a fiscal category. Categories come from model
// output, so a value unfit for a log field leaves ctx untouched.
func WithCategory(ctx context.Context, category string) context.Context {
	if category == "" || len(category) > maxCategoryLen ||
		!utf8.ValidString(category) || !categoryPattern.MatchString(category) {
		return ctx
	}
	return withCorrelation(ctx, func(c *Correlation) { c.Category = category })
}

// ValidateID reports whether id can be used as a request or analysis id:
// non-empty, at most 128 bytes, letters, digits, '-' and '_' only.
func ValidateID(id string) error {
	switch {
	case id == "":
		return errors.New("id is empty")
	case len(id) > maxIDLen:
		return fmt.Errorf("id longer than %d bytes", maxIDLen)
	case !idPattern.MatchString(id):
		return fmt.Errorf("id %q has characters outside [a-zA-Z0-9_-]", id)
	}
	return nil
}

func mustID(what, id string) {
	if err := ValidateID(id); err != nil {
		panic(fmt.Sprintf("logging: invalid %s: %v", what, err))
	}
}

// ContextFields returns the trace and correlation fields carried by ctx.
func ContextFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.Stringer("trace_id", sc.TraceID()),
			zap.Stringer("span_id", sc.SpanID()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}

	c := CorrelationFrom(ctx)
	if c.RequestID != "" {
		fields = append(fields, zap.String("request.id", c.RequestID))
	}
	if c.AnalysisID != "" {
		fields = append(fields, zap.String("analysis.id", c.AnalysisID))
	}
	if c.Category != "" {
		fields = append(fields, zap.String("fiscal.category", c.Category))
	}
	return fields
}
