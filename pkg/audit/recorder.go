package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Recorder builds audit entries from request context. It does not persist them:
// entries are handed to the storage that commits the audited change so both
// land in the same transaction.
type Recorder struct {
	actorExtractor     ContextExtractor
	ipExtractor        ContextExtractor
	requestIDExtractor ContextExtractor
	filter             *MetadataFilter
	now                func() time.Time
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

func WithActorExtractor(fn ContextExtractor) RecorderOption {
	return func(r *Recorder) {
		if fn != nil {
			r.actorExtractor = fn
		}
	}
}

func WithIPExtractor(fn ContextExtractor) RecorderOption {
	return func(r *Recorder) {
		if fn != nil {
			r.ipExtractor = fn
		}
	}
}

func WithRequestIDExtractor(fn ContextExtractor) RecorderOption {
	return func(r *Recorder) {
		if fn != nil {
			r.requestIDExtractor = fn
		}
	}
}

// WithMetadataFilter scrubs entry details before they are stored.
func WithMetadataFilter(f *MetadataFilter) RecorderOption {
	return func(r *Recorder) {
		r.filter = f
	}
}

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRecorder creates a recorder using the package context helpers and
// the default PII filter.
func NewRecorder(opts ...RecorderOption) *Recorder {
	r := &Recorder{
		actorExtractor:     ActorFromContext,
		ipExtractor:        IPFromContext,
		requestIDExtractor: RequestIDFromContext,
		filter:             NewMetadataFilter(),
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record builds a successful entry for action.
func (r *Recorder) Record(ctx context.Context, action string, opts ...EntryOption) Entry {
	e := Entry{
		ID:        uuid.New(),
		Actor:     SystemActor,
		Action:    action,
		Result:    ResultSuccess,
		CreatedAt: r.now().UTC(),
	}

	if actor, ok := r.actorExtractor(ctx); ok {
		e.Actor = actor
	}
	if ip, ok := r.ipExtractor(ctx); ok {
		e.IP = ip
	}
	if id, ok := r.requestIDExtractor(ctx); ok {
		e.RequestID = id
	}

	for _, opt := range opts {
		opt(&e)
	}

	if r.filter != nil {
		e.Details = r.filter.Filter(e.Details)
	}

	return e
}

// RecordError builds a failed entry for action.
func (r *Recorder) RecordError(ctx context.Context, action string, err error, opts ...EntryOption) Entry {
	return r.Record(ctx, action, append(opts, WithError(err))...)
}
