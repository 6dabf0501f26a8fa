package audit

import (
	"context"
	"time"
)

// Action names a published change to a domain.
type Action string

const (
	ActionDomainRegistered Action = "domain_registered"
	ActionRecordsPublished Action = "records_published"
)

// Event is emitted after a write to the network succeeds. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Action       Action    `json:"action"`
	Domain       string    `json:"domain"`
	ChunkAddress string    `json:"chunkAddress"`
	RecordCount  int       `json:"recordCount"`
	Mutation     string    `json:"mutation,omitempty"`
	RequestID    string    `json:"requestId,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Emitter accepts audit events.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Emit(context.Context, Event) error { return nil }
