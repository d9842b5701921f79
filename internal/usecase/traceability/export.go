package traceability

import (
	"context"
	"errors"
	"io"

	"tanktrace/internal/errs"
)

// ExportLookup renders the lookup of serial to w.
func (s *Service) ExportLookup(ctx context.Context, serial string, plantID uint64, w io.Writer) error {
	if s.renderer == nil {
		return errors.New("lookup renderer is not configured")
	}
	lookup, err := s.GetLookup(ctx, serial, plantID)
	if err != nil {
		return err
	}
	if err := s.renderer.RenderLookup(w, lookup); err != nil {
		return errs.Wrapf(err, "render lookup %s", lookup.Serial)
	}
	return nil
}
