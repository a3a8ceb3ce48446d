package txn

import (
	"context"

	"github.com/rmrk-team/rmrk-substrate-sub000/event"
	"github.com/rmrk-team/rmrk-substrate-sub000/ledger"
	"gorm.io/gorm"
)

// Run executes one engine operation: a single transaction producing a
// state delta plus an ordered event batch, committed together or not at
// all. Events are broadcast only after the transaction committed.
func Run(ctx context.Context, db *gorm.DB, led ledger.Ledger, rec *event.Recorder,
	fn func(tx *gorm.DB, b *event.Batch) error) error {

	var batch *event.Batch
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		block, err := led.CurrentBlock(tx)
		if err != nil {
			return err
		}
		batch = rec.Begin(block)
		if err := fn(tx, batch); err != nil {
			return err
		}
		return rec.Commit(tx, batch)
	})
	if err != nil {
		return err
	}
	rec.Publish(ctx, batch)
	return nil
}
