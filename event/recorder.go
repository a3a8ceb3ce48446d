package event

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rmrk-team/rmrk-substrate-sub000/cache"
	"github.com/rmrk-team/rmrk-substrate-sub000/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Channel is the pub/sub channel committed events are published on.
const Channel = "chain:events"

// Recorder writes engine events. Events are recorded inside the same
// transaction as the state delta that produced them, so a failed
// operation leaves no events behind; after commit they are published to
// the pub/sub channel for stream subscribers.
type Recorder struct {
	pubsub cache.PubSub
	logger *zap.Logger
}

// NewRecorder creates a Recorder. pubsub may be nil; events are then only
// persisted.
func NewRecorder(pubsub cache.PubSub, logger *zap.Logger) *Recorder {
	return &Recorder{pubsub: pubsub, logger: logger}
}

// Batch collects the ordered events of a single operation.
type Batch struct {
	TraceID string
	Block   uint64
	rows    []*model.Event
}

// Begin starts a batch for one operation at the given block height.
func (r *Recorder) Begin(block uint64) *Batch {
	return &Batch{TraceID: uuid.New().String(), Block: block}
}

// Emit appends one event to the batch. Payload marshalling failures are
// impossible for the engine's own payload structs, so they only log.
func (b *Batch) Emit(name string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte("{}")
	}
	b.rows = append(b.rows, &model.Event{
		TraceID: b.TraceID,
		Seq:     len(b.rows),
		Name:    name,
		Payload: datatypes.JSON(raw),
		Block:   b.Block,
	})
}

// Len reports how many events the batch holds.
func (b *Batch) Len() int { return len(b.rows) }

// Commit persists the batch through tx. Call inside the operation's
// transaction, after all state writes succeeded.
func (r *Recorder) Commit(tx *gorm.DB, b *Batch) error {
	if len(b.rows) == 0 {
		return nil
	}
	return tx.Create(&b.rows).Error
}

// Publish broadcasts the committed batch on the event channel. Call only
// after the transaction committed; publish failures are logged, never
// propagated (the state of record is the Events table).
func (r *Recorder) Publish(ctx context.Context, b *Batch) {
	if r.pubsub == nil {
		return
	}
	for _, row := range b.rows {
		raw, err := json.Marshal(row)
		if err != nil {
			continue
		}
		if err := r.pubsub.Publish(ctx, Channel, string(raw)); err != nil {
			r.logger.Warn("event publish failed",
				zap.String("event", row.Name), zap.Error(err))
		}
	}
}
