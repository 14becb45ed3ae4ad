// Package logging builds the zap loggers used across legisrag.
//
// A Logger writes JSON or console entries to stdout or stderr and, when an
// OpenTelemetry LoggerProvider is supplied, to the otelzap bridge as well.
// Entries below error level are sampled; errors are always kept.
//
// Context helpers attach correlation fields that every Logger method (and
// ContextFields, for callers holding a plain *zap.Logger) adds to entries:
//
//	ctx = logging.WithRequestID(ctx, uuid.NewString())
//	ctx = logging.WithAnalysisID(ctx, report.ID)
//	ctx = logging.WithCategory(ctx, fc.Category)
//	logger.Info(ctx, "analysis complete", zap.Duration("duration", d))
//
// Invoices carry taxpayer identifiers, so the encoder redacts CPF and CNPJ
// numbers and API credentials from string fields before they are written.
package logging
