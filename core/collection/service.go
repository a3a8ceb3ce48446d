package collection

import (
	"context"
	"errors"

	"github.com/rmrk-team/rmrk-substrate-sub000/config"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/errs"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/txn"
	"github.com/rmrk-team/rmrk-substrate-sub000/event"
	"github.com/rmrk-team/rmrk-substrate-sub000/ledger"
	"github.com/rmrk-team/rmrk-substrate-sub000/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service manages the collection registry.
type Service struct {
	db     *gorm.DB
	led    ledger.Ledger
	rec    *event.Recorder
	params config.ChainConfig
	logger *zap.Logger
}

// NewService creates a collection Service.
func NewService(db *gorm.DB, led ledger.Ledger, rec *event.Recorder, params config.ChainConfig, logger *zap.Logger) *Service {
	return &Service{db: db, led: led, rec: rec, params: params, logger: logger}
}

// Create allocates a fresh collection with the caller as issuer.
func (svc *Service) Create(ctx context.Context, caller int64, collectionID uint64, metadata, symbol string, max *uint32) error {
	if len(symbol) > svc.params.CollectionSymbolLimit || len(metadata) > svc.params.MetadataLimit {
		return errs.ErrTooLong
	}
	return txn.Run(ctx, svc.db, svc.led, svc.rec, func(tx *gorm.DB, b *event.Batch) error {
		var existing model.Collection
		err := tx.First(&existing, "id = ?", collectionID).Error
		if err == nil {
			return errs.ErrNoAvailableCollectionID
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		col := &model.Collection{
			ID:       collectionID,
			Issuer:   caller,
			Metadata: metadata,
			Symbol:   symbol,
			Max:      max,
		}
		if err := tx.Create(col).Error; err != nil {
			return err
		}
		b.Emit(model.EvCollectionCreated, map[string]interface{}{
			"collection_id": collectionID,
			"issuer":        caller,
		})
		svc.logger.Info("collection created",
			zap.Uint64("collection_id", collectionID), zap.Int64("issuer", caller))
		return nil
	})
}

// Lock forbids all future minting into the collection. Idempotent once set.
func (svc *Service) Lock(ctx context.Context, caller int64, collectionID uint64) error {
	return txn.Run(ctx, svc.db, svc.led, svc.rec, func(tx *gorm.DB, b *event.Batch) error {
		col, err := Get(tx, collectionID)
		if err != nil {
			return err
		}
		if col.Issuer != caller {
			return errs.ErrNoPermission
		}
		if err := tx.Model(&model.Collection{}).Where("id = ?", collectionID).
			Update("locked", true).Error; err != nil {
			return err
		}
		b.Emit(model.EvCollectionLocked, map[string]interface{}{
			"collection_id": collectionID,
		})
		return nil
	})
}

// Destroy removes an empty collection and its collection-level properties.
func (svc *Service) Destroy(ctx context.Context, caller int64, collectionID uint64) error {
	return txn.Run(ctx, svc.db, svc.led, svc.rec, func(tx *gorm.DB, b *event.Batch) error {
		col, err := Get(tx, collectionID)
		if err != nil {
			return err
		}
		if col.Issuer != caller {
			return errs.ErrNoPermission
		}
		if col.NftsCount != 0 {
			return errs.ErrCollectionNotEmpty
		}
		if err := tx.Where("collection_id = ? AND nft_scoped = ?", collectionID, false).
			Delete(&model.Property{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", collectionID).Delete(&model.Collection{}).Error; err != nil {
			return err
		}
		b.Emit(model.EvCollectionDestroyed, map[string]interface{}{
			"collection_id": collectionID,
		})
		svc.logger.Info("collection destroyed", zap.Uint64("collection_id", collectionID))
		return nil
	})
}

// ChangeIssuer hands the collection to a new issuer. The unique-token
// class ownership moves in the same step.
func (svc *Service) ChangeIssuer(ctx context.Context, caller int64, collectionID uint64, newIssuer int64) error {
	return txn.Run(ctx, svc.db, svc.led, svc.rec, func(tx *gorm.DB, b *event.Batch) error {
		col, err := Get(tx, collectionID)
		if err != nil {
			return err
		}
		if col.Issuer != caller {
			return errs.ErrNoPermission
		}
		var acc model.Account
		if err := tx.First(&acc, "id = ?", newIssuer).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.ErrAccountUnknown
			}
			return err
		}
		if err := tx.Model(&model.Collection{}).Where("id = ?", collectionID).
			Update("issuer", newIssuer).Error; err != nil {
			return err
		}
		b.Emit(model.EvIssuerChanged, map[string]interface{}{
			"collection_id": collectionID,
			"old_issuer":    caller,
			"new_issuer":    newIssuer,
		})
		return nil
	})
}

// Get loads a collection through tx, mapping missing rows to
// ErrCollectionUnknown. Shared by the other engine services.
func Get(tx *gorm.DB, collectionID uint64) (*model.Collection, error) {
	var col model.Collection
	err := tx.First(&col, "id = ?", collectionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrCollectionUnknown
	}
	if err != nil {
		return nil, err
	}
	return &col, nil
}
