package logging

import (
	"context"
	"log/slog"
	"strings"
)

type ctxLoggerKey struct{}
type ctxAttrsKey struct{}

// Attribute keys shared by every tanktrace log line.
const (
	KeyComponent  = "component"
	KeyRequestID  = "request_id"
	KeyOperator   = "operator"
	KeyPlant      = "plant_id"
	KeyWorkCenter = "work_center_id"
)

// WithLogger stores logger on ctx. A nil logger leaves ctx unchanged.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxLoggerKey{}, logger)
}

// WithAttrs adds attrs to every line logged through ctx. A repeated key
// replaces the earlier value in place.
func WithAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(attrs) == 0 {
		return ctx
	}
	return context.WithValue(ctx, ctxAttrsKey{}, mergeAttrs(Attrs(ctx), attrs))
}

func WithComponent(ctx context.Context, component string) context.Context {
	return WithAttrs(ctx, slog.String(KeyComponent, component))
}

// WithRequest tags ctx with the HTTP request id and, when known, the
// operator named by the caller.
func WithRequest(ctx context.Context, requestID string, operator string) context.Context {
	attrs := make([]slog.Attr, 0, 2)
	if requestID = strings.TrimSpace(requestID); requestID != "" {
		attrs = append(attrs, slog.String(KeyRequestID, requestID))
	}
	if operator = strings.TrimSpace(operator); operator != "" {
		attrs = append(attrs, slog.String(KeyOperator, operator))
	}
	return WithAttrs(ctx, attrs...)
}

// WithStation scopes ctx to a plant and work center. Zero ids are skipped.
func WithStation(ctx context.Context, plantID uint64, workCenterID uint64) context.Context {
	attrs := make([]slog.Attr, 0, 2)
	if plantID != 0 {
		attrs = append(attrs, slog.Uint64(KeyPlant, plantID))
	}
	if workCenterID != 0 {
		attrs = append(attrs, slog.Uint64(KeyWorkCenter, workCenterID))
	}
	return WithAttrs(ctx, attrs...)
}

// Logger returns the logger stored on ctx, or slog.Default.
func Logger(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(ctxLoggerKey{}).(*slog.Logger); ok && logger != nil {
			return logger
		}
	}
	return slog.Default()
}

func Attrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	attrs, ok := ctx.Value(ctxAttrsKey{}).([]slog.Attr)
	if !ok || len(attrs) == 0 {
		return nil
	}
	cloned := make([]slog.Attr, len(attrs))
	copy(cloned, attrs)
	return cloned
}

func Debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	log(ctx, slog.LevelDebug, msg, attrs...)
}

func Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	log(ctx, slog.LevelInfo, msg, attrs...)
}

func Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	log(ctx, slog.LevelWarn, msg, attrs...)
}

func Error(ctx context.Context, msg string, attrs ...slog.Attr) {
	log(ctx, slog.LevelError, msg, attrs...)
}

func log(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := Logger(ctx)
	if !logger.Enabled(ctx, level) {
		return
	}
	logger.LogAttrs(ctx, level, msg, mergeAttrs(Attrs(ctx), attrs)...)
}

func mergeAttrs(base []slog.Attr, extra []slog.Attr) []slog.Attr {
	merged := make([]slog.Attr, 0, len(base)+len(extra))
	index := make(map[string]int, len(base)+len(extra))
	for _, group := range [][]slog.Attr{base, extra} {
		for _, attr := range group {
			if attr.Key != "" {
				if i, ok := index[attr.Key]; ok {
					merged[i] = attr
					continue
				}
				index[attr.Key] = len(merged)
			}
			merged = append(merged, attr)
		}
	}
	return merged
}
