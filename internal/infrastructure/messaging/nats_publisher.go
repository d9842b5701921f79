package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"tanktrace/internal/errs"
	"tanktrace/internal/ports"
)

type conn interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes committed events as JSON under a subject prefix.
type NATSPublisher struct {
	nc     conn
	close  func()
	prefix string
}

var _ ports.EventPublisher = (*NATSPublisher)(nil)

func Connect(url string, prefix string, name string) (*NATSPublisher, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("nats url is required")
	}
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, errs.Wrapf(err, "connect nats %s", url)
	}
	return &NATSPublisher{nc: nc, close: nc.Close, prefix: strings.Trim(strings.TrimSpace(prefix), ".")}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, payload any) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return errs.Wrapf(err, "encode %s payload", subject)
	}
	full := p.Subject(subject)
	if err := p.nc.Publish(full, data); err != nil {
		return errs.Wrapf(err, "publish %s", full)
	}
	return nil
}

// Subject prefixes a relative subject.
func (p *NATSPublisher) Subject(subject string) string {
	if p.prefix == "" {
		return subject
	}
	return p.prefix + "." + subject
}

func (p *NATSPublisher) Close() {
	if p.close != nil {
		p.close()
	}
}
