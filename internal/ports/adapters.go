package ports

import (
	"context"
	"time"
)

// Cache defines a generic key-value capability for usecases.
// Adapters may be backed by a database table or Redis.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// EventPublisher fans out committed domain events. Implementations must not
// block longer than the request deadline.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// Metrics receives engine-level observations.
type Metrics interface {
	QueueOperation(op string, err error)
	AssemblyOperation(op string, err error)
	LookupCompleted(d time.Duration, nodes int)
}

// Event subjects, relative to the configured prefix.
const (
	SubjectQueueAdvanced       = "queue.advanced"
	SubjectAssemblyCreated     = "assembly.created"
	SubjectAssemblyReassembled = "assembly.reassembled"
)

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }

type NopMetrics struct{}

func (NopMetrics) QueueOperation(string, error)       {}
func (NopMetrics) AssemblyOperation(string, error)    {}
func (NopMetrics) LookupCompleted(time.Duration, int) {}
