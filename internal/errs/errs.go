package errs

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
)

func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf prefixes err with a formatted message, keeping it unwrappable.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// WithStack records the caller's stack unless err already carries one.
func WithStack(err error) error {
	if err == nil {
		return nil
	}
	var se *StackError
	if errors.As(err, &se) {
		return err
	}
	return &StackError{err: err, stack: debug.Stack()}
}

type StackError struct {
	err   error
	stack []byte
}

func (e *StackError) Error() string { return e.err.Error() }
func (e *StackError) Unwrap() error { return e.err }
func (e *StackError) Stack() []byte { return e.stack }

type loggable struct{ err error }

// Loggable renders err as a slog group: message, kind, the validation
// field when set, the unwrap chain and, for internal failures only, the
// captured stack.
//
//	logging.Warn(ctx, "advance failed", slog.Any("err", errs.Loggable(err)))
func Loggable(err error) slog.LogValuer { return loggable{err: err} }

func (l loggable) LogValue() slog.Value {
	if l.err == nil {
		return slog.GroupValue()
	}

	kind := KindOf(l.err)
	attrs := []slog.Attr{
		slog.String("message", l.err.Error()),
		slog.String("kind", kind.String()),
	}
	if field := FieldOf(l.err); field != "" {
		attrs = append(attrs, slog.String("field", field))
	}
	if chain := ErrorChainStrings(l.err); len(chain) > 1 {
		attrs = append(attrs, slog.Any("chain", chain))
	}
	if kind == KindInternal {
		var se *StackError
		if errors.As(l.err, &se) {
			attrs = append(attrs, slog.String("stack", string(se.Stack())))
		}
	}
	return slog.GroupValue(attrs...)
}

// ErrorChainStrings lists the distinct messages of the unwrap chain,
// outermost first. Wrappers that add no text of their own are skipped.
func ErrorChainStrings(err error) []string {
	if err == nil {
		return nil
	}
	out := make([]string, 0, 4)
	for e := err; e != nil; e = errors.Unwrap(e) {
		msg := e.Error()
		if len(out) > 0 && out[len(out)-1] == msg {
			continue
		}
		out = append(out, msg)
	}
	return out
}
