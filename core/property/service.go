package property

import (
	"context"
	"errors"

	"github.com/rmrk-team/rmrk-substrate-sub000/config"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/collection"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/errs"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/nft"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/txn"
	"github.com/rmrk-team/rmrk-substrate-sub000/event"
	"github.com/rmrk-team/rmrk-substrate-sub000/ledger"
	"github.com/rmrk-team/rmrk-substrate-sub000/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Scope names what a property hangs off: a collection or one NFT in it.
type Scope struct {
	CollectionID uint64
	NftScoped    bool
	NftID        uint64
}

// ForCollection scopes a property to the collection itself.
func ForCollection(collectionID uint64) Scope {
	return Scope{CollectionID: collectionID}
}

// ForNft scopes a property to one NFT.
func ForNft(collectionID, nftID uint64) Scope {
	return Scope{CollectionID: collectionID, NftScoped: true, NftID: nftID}
}

// Service owns the key/value property store for collections and NFTs.
type Service struct {
	db     *gorm.DB
	led    ledger.Ledger
	rec    *event.Recorder
	params config.ChainConfig
	logger *zap.Logger
}

// NewService creates a property Service.
func NewService(db *gorm.DB, led ledger.Ledger, rec *event.Recorder, params config.ChainConfig, logger *zap.Logger) *Service {
	return &Service{db: db, led: led, rec: rec, params: params, logger: logger}
}

// Set writes or overwrites a property under the scope. Collection
// properties are the issuer's to set; NFT properties the root owner's.
func (svc *Service) Set(ctx context.Context, caller int64, sc Scope, key, value string) error {
	if len(key) > svc.params.KeyLimit || len(value) > svc.params.ValueLimit {
		return errs.ErrTooLong
	}
	return txn.Run(ctx, svc.db, svc.led, svc.rec, func(tx *gorm.DB, b *event.Batch) error {
		if err := svc.authorize(tx, caller, sc); err != nil {
			return err
		}
		var existing model.Property
		err := tx.First(&existing, "collection_id = ? AND nft_scoped = ? AND nft_id = ? AND prop_key = ?",
			sc.CollectionID, sc.NftScoped, sc.NftID, key).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			var count int64
			if err := tx.Model(&model.Property{}).
				Where("collection_id = ? AND nft_scoped = ? AND nft_id = ?",
					sc.CollectionID, sc.NftScoped, sc.NftID).
				Count(&count).Error; err != nil {
				return err
			}
			if count >= int64(svc.params.PropertiesLimit) {
				return errs.ErrTooManyProperties
			}
		} else if err != nil {
			return err
		}
		prop := &model.Property{
			CollectionID: sc.CollectionID,
			NftScoped:    sc.NftScoped,
			NftID:        sc.NftID,
			Key:          key,
			Value:        value,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "collection_id"}, {Name: "nft_scoped"},
				{Name: "nft_id"}, {Name: "prop_key"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"prop_value"}),
		}).Create(prop).Error; err != nil {
			return err
		}
		b.Emit(model.EvPropertySet, map[string]interface{}{
			"collection_id": sc.CollectionID,
			"nft_id":        nftIDOrNil(sc),
			"key":           key,
			"value":         value,
		})
		return nil
	})
}

// Remove deletes one property. Removing a key that is not set succeeds
// and still reports the removal.
func (svc *Service) Remove(ctx context.Context, caller int64, sc Scope, key string) error {
	return txn.Run(ctx, svc.db, svc.led, svc.rec, func(tx *gorm.DB, b *event.Batch) error {
		if err := svc.authorize(tx, caller, sc); err != nil {
			return err
		}
		if err := tx.Where("collection_id = ? AND nft_scoped = ? AND nft_id = ? AND prop_key = ?",
			sc.CollectionID, sc.NftScoped, sc.NftID, key).
			Delete(&model.Property{}).Error; err != nil {
			return err
		}
		b.Emit(model.EvPropertyRemoved, map[string]interface{}{
			"collection_id": sc.CollectionID,
			"nft_id":        nftIDOrNil(sc),
			"key":           key,
		})
		return nil
	})
}

// RemoveAll deletes every property under the scope in one step. The
// auth rules match Remove; a scope with no properties succeeds.
func (svc *Service) RemoveAll(ctx context.Context, caller int64, sc Scope) error {
	return txn.Run(ctx, svc.db, svc.led, svc.rec, func(tx *gorm.DB, b *event.Batch) error {
		if err := svc.authorize(tx, caller, sc); err != nil {
			return err
		}
		if err := tx.Where("collection_id = ? AND nft_scoped = ? AND nft_id = ?",
			sc.CollectionID, sc.NftScoped, sc.NftID).
			Delete(&model.Property{}).Error; err != nil {
			return err
		}
		b.Emit(model.EvPropertiesRemoved, map[string]interface{}{
			"collection_id": sc.CollectionID,
			"nft_id":        nftIDOrNil(sc),
		})
		return nil
	})
}

// Get reads one property value. Missing keys report ErrPropertyNotFound.
func (svc *Service) Get(ctx context.Context, sc Scope, key string) (string, error) {
	var prop model.Property
	err := svc.db.WithContext(ctx).
		First(&prop, "collection_id = ? AND nft_scoped = ? AND nft_id = ? AND prop_key = ?",
			sc.CollectionID, sc.NftScoped, sc.NftID, key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", errs.ErrPropertyNotFound
	}
	if err != nil {
		return "", err
	}
	return prop.Value, nil
}

// List returns all properties under the scope.
func (svc *Service) List(ctx context.Context, sc Scope) ([]model.Property, error) {
	var props []model.Property
	err := svc.db.WithContext(ctx).
		Where("collection_id = ? AND nft_scoped = ? AND nft_id = ?",
			sc.CollectionID, sc.NftScoped, sc.NftID).
		Order("prop_key").Find(&props).Error
	return props, err
}

func (svc *Service) authorize(tx *gorm.DB, caller int64, sc Scope) error {
	if sc.NftScoped {
		n, err := nft.Get(tx, sc.CollectionID, sc.NftID)
		if err != nil {
			return err
		}
		if n.RootOwner != caller {
			return errs.ErrNoPermission
		}
		if n.Pending {
			return errs.ErrNoPermission
		}
		if n.Locked {
			return errs.ErrNftIsLocked
		}
		return nil
	}
	col, err := collection.Get(tx, sc.CollectionID)
	if err != nil {
		return err
	}
	if col.Issuer != caller {
		return errs.ErrNoPermission
	}
	return nil
}

func nftIDOrNil(sc Scope) interface{} {
	if sc.NftScoped {
		return sc.NftID
	}
	return nil
}
