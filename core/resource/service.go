package resource

import (
	"context"
	"errors"

	"github.com/rmrk-team/rmrk-substrate-sub000/config"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/collection"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/errs"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/txn"
	"github.com/rmrk-team/rmrk-substrate-sub000/event"
	"github.com/rmrk-team/rmrk-substrate-sub000/ledger"
	"github.com/rmrk-team/rmrk-substrate-sub000/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Input describes one resource to attach to an NFT.
type Input struct {
	ResourceID uint64   `json:"resource_id"`
	Kind       string   `json:"kind"`
	Src        string   `json:"src"`
	Metadata   string   `json:"metadata"`
	License    string   `json:"license"`
	Thumb      string   `json:"thumb"`
	BaseID     *uint64  `json:"base_id"`
	SlotID     *uint64  `json:"slot_id"`
	SlotBaseID *uint64  `json:"slot_base_id"`
	Parts      []uint64 `json:"parts"`
}

// Service is the resource engine: typed resources on NFTs with the
// pending/accept and pending-removal protocols and the per-NFT priority
// order.
type Service struct {
	db     *gorm.DB
	led    ledger.Ledger
	rec    *event.Recorder
	params config.ChainConfig
	logger *zap.Logger
}

// NewService creates a resource Service.
func NewService(db *gorm.DB, led ledger.Ledger, rec *event.Recorder, params config.ChainConfig, logger *zap.Logger) *Service {
	return &Service{db: db, led: led, rec: rec, params: params, logger: logger}
}

// AddBasic attaches a basic resource.
func (svc *Service) AddBasic(ctx context.Context, caller int64, collectionID, nftID uint64, in Input) error {
	in.Kind = model.ResourceBasic
	return svc.add(ctx, caller, collectionID, nftID, in)
}

// AddComposable attaches a composable resource.
func (svc *Service) AddComposable(ctx context.Context, caller int64, collectionID, nftID uint64, in Input) error {
	in.Kind = model.ResourceComposable
	return svc.add(ctx, caller, collectionID, nftID, in)
}

// AddSlot attaches a slot resource.
func (svc *Service) AddSlot(ctx context.Context, caller int64, collectionID, nftID uint64, in Input) error {
	in.Kind = model.ResourceSlot
	return svc.add(ctx, caller, collectionID, nftID, in)
}

func (svc *Service) add(ctx context.Context, caller int64, collectionID, nftID uint64, in Input) error {
	return txn.Run(ctx, svc.db, svc.led, svc.rec, func(tx *gorm.DB, b *event.Batch) error {
		return svc.AddTx(tx, b, caller, collectionID, nftID, in)
	})
}

// AddTx attaches one resource within an existing operation transaction.
// Exported for the NFT service, which attaches initial resources on mint.
func (svc *Service) AddTx(tx *gorm.DB, b *event.Batch, caller int64, collectionID, nftID uint64, in Input) error {
	col, err := collection.Get(tx, collectionID)
	if err != nil {
		return err
	}
	if col.Issuer != caller {
		return errs.ErrNoPermission
	}
	nft, err := getNft(tx, collectionID, nftID)
	if err != nil {
		return err
	}
	if nft.Locked {
		return errs.ErrNftIsLocked
	}
	if err := svc.validate(tx, &in); err != nil {
		return err
	}

	var existing model.Resource
	err = tx.First(&existing, "collection_id = ? AND nft_id = ? AND resource_id = ?",
		collectionID, nftID, in.ResourceID).Error
	if err == nil {
		return errs.ErrResourceAlreadyExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	res := &model.Resource{
		CollectionID: collectionID,
		NftID:        nftID,
		ResourceID:   in.ResourceID,
		Kind:         in.Kind,
		Src:          in.Src,
		Metadata:     in.Metadata,
		License:      in.License,
		Thumb:        in.Thumb,
		BaseID:       in.BaseID,
		SlotID:       in.SlotID,
		SlotBaseID:   in.SlotBaseID,
		Parts:        datatypes.NewJSONSlice(in.Parts),
		Pending:      nft.RootOwner != caller,
	}
	if err := tx.Create(res).Error; err != nil {
		return err
	}
	// Side indices are written only for resources that are live from the
	// start; pending resources get theirs on acceptance.
	if !res.Pending {
		if err := writeSideIndices(tx, res); err != nil {
			return err
		}
	}
	b.Emit(model.EvResourceAdded, map[string]interface{}{
		"collection_id": collectionID,
		"nft_id":        nftID,
		"resource_id":   in.ResourceID,
		"kind":          in.Kind,
		"pending":       res.Pending,
	})
	return nil
}

// Accept clears a resource's pending flag and performs the deferred
// side-index updates. Only the NFT's root owner may accept.
func (svc *Service) Accept(ctx context.Context, caller int64, collectionID, nftID, resourceID uint64) error {
	return txn.Run(ctx, svc.db, svc.led, svc.rec, func(tx *gorm.DB, b *event.Batch) error {
		nft, err := getNft(tx, collectionID, nftID)
		if err != nil {
			return err
		}
		if nft.RootOwner != caller {
			return errs.ErrNoPermission
		}
		if nft.Locked {
			return errs.ErrNftIsLocked
		}
		res, err := getResource(tx, collectionID, nftID, resourceID)
		if err != nil {
			return err
		}
		if !res.Pending {
			return errs.ErrResourceNotPending
		}
		if err := tx.Model(&model.Resource{}).
			Where("collection_id = ? AND nft_id = ? AND resource_id = ?",
				collectionID, nftID, resourceID).
			Update("pending", false).Error; err != nil {
			return err
		}
		res.Pending = false
		if err := writeSideIndices(tx, res); err != nil {
			return err
		}
		b.Emit(model.EvResourceAccepted, map[string]interface{}{
			"collection_id": collectionID,
			"nft_id":        nftID,
			"resource_id":   resourceID,
		})
		return nil
	})
}

// Replace updates a resource body in place, keeping its id and pending
// flags. Intended for metadata corrections; the pending workflow is not
// re-entered. Accepted resources get their side indices resynced to the
// new body.
func (svc *Service) Replace(ctx context.Context, caller int64, collectionID, nftID, resourceID uint64, in Input) error {
	return txn.Run(ctx, svc.db, svc.led, svc.rec, func(tx *gorm.DB, b *event.Batch) error {
		col, err := collection.Get(tx, collectionID)
		if err != nil {
			return err
		}
		if col.Issuer != caller {
			return errs.ErrNoPermission
		}
		nft, err := getNft(tx, collectionID, nftID)
		if err != nil {
			return err
		}
		if nft.Locked {
			return errs.ErrNftIsLocked
		}
		res, err := getResource(tx, collectionID, nftID, resourceID)
		if err != nil {
			return err
		}
		if in.Kind == "" {
			in.Kind = res.Kind
		}
		if err := svc.validate(tx, &in); err != nil {
			return err
		}
		if !res.Pending {
			if err := removeSideIndices(tx, res); err != nil {
				return err
			}
		}
		res.Kind = in.Kind
		res.Src = in.Src
		res.Metadata = in.Metadata
		res.License = in.License
		res.Thumb = in.Thumb
		res.BaseID = in.BaseID
		res.SlotID = in.SlotID
		res.SlotBaseID = in.SlotBaseID
		res.Parts = datatypes.NewJSONSlice(in.Parts)
		if err := tx.Model(&model.Resource{}).
			Where("collection_id = ? AND nft_id = ? AND resource_id = ?",
				collectionID, nftID, resourceID).
			Updates(map[string]interface{}{
				"kind":         res.Kind,
				"src":          res.Src,
				"metadata":     res.Metadata,
				"license":      res.License,
				"thumb":        res.Thumb,
				"base_id":      res.BaseID,
				"slot_id":      res.SlotID,
				"slot_base_id": res.SlotBaseID,
				"parts":        res.Parts,
			}).Error; err != nil {
			return err
		}
		if !res.Pending {
			if err := writeSideIndices(tx, res); err != nil {
				return err
			}
		}
		b.Emit(model.EvResourceReplaced, map[string]interface{}{
			"collection_id": collectionID,
			"nft_id":        nftID,
			"resource_id":   resourceID,
		})
		return nil
	})
}

// Remove deletes a resource, or flags it pending-removal when the issuer
// does not root-own the NFT.
func (svc *Service) Remove(ctx context.Context, caller int64, collectionID, nftID, resourceID uint64) error {
	return txn.Run(ctx, svc.db, svc.led, svc.rec, func(tx *gorm.DB, b *event.Batch) error {
		col, err := collection.Get(tx, collectionID)
		if err != nil {
			return err
		}
		if col.Issuer != caller {
			return errs.ErrNoPermission
		}
		nft, err := getNft(tx, collectionID, nftID)
		if err != nil {
			return err
		}
		if nft.Locked {
			return errs.ErrNftIsLocked
		}
		res, err := getResource(tx, collectionID, nftID, resourceID)
		if err != nil {
			return err
		}
		if nft.RootOwner == caller {
			if err := deleteResource(tx, res); err != nil {
				return err
			}
		} else {
			if err := tx.Model(&model.Resource{}).
				Where("collection_id = ? AND nft_id = ? AND resource_id = ?",
					collectionID, nftID, resourceID).
				Update("pending_removal", true).Error; err != nil {
				return err
			}
		}
		b.Emit(model.EvResourceRemoval, map[string]interface{}{
			"collection_id": collectionID,
			"nft_id":        nftID,
			"resource_id":   resourceID,
		})
		return nil
	})
}

// AcceptRemoval performs the deletion of a pending-removal resource. Only
// the NFT's root owner may accept.
func (svc *Service) AcceptRemoval(ctx context.Context, caller int64, collectionID, nftID, resourceID uint64) error {
	return txn.Run(ctx, svc.db, svc.led, svc.rec, func(tx *gorm.DB, b *event.Batch) error {
		nft, err := getNft(tx, collectionID, nftID)
		if err != nil {
			return err
		}
		if nft.RootOwner != caller {
			return errs.ErrNoPermission
		}
		if nft.Locked {
			return errs.ErrNftIsLocked
		}
		res, err := getResource(tx, collectionID, nftID, resourceID)
		if err != nil {
			return err
		}
		if !res.PendingRemoval {
			return errs.ErrResourceNotPending
		}
		if err := deleteResource(tx, res); err != nil {
			return err
		}
		b.Emit(model.EvResourceRemovalAccepted, map[string]interface{}{
			"collection_id": collectionID,
			"nft_id":        nftID,
			"resource_id":   resourceID,
		})
		return nil
	})
}

// SetPriority rewrites the whole priority table for one NFT: position i
// in ids becomes priority i. The ids are advisory and need not reference
// existing resources.
func (svc *Service) SetPriority(ctx context.Context, caller int64, collectionID, nftID uint64, ids []uint64) error {
	if len(ids) > svc.params.MaxPriorities {
		return errs.ErrTooManyPriorities
	}
	return txn.Run(ctx, svc.db, svc.led, svc.rec, func(tx *gorm.DB, b *event.Batch) error {
		nft, err := getNft(tx, collectionID, nftID)
		if err != nil {
			return err
		}
		if nft.RootOwner != caller {
			return errs.ErrNoPermission
		}
		if nft.Locked {
			return errs.ErrNftIsLocked
		}
		if err := tx.Where("collection_id = ? AND nft_id = ?", collectionID, nftID).
			Delete(&model.Priority{}).Error; err != nil {
			return err
		}
		for i, rid := range ids {
			p := &model.Priority{
				CollectionID: collectionID,
				NftID:        nftID,
				ResourceID:   rid,
				Priority:     uint32(i),
			}
			if err := tx.Create(p).Error; err != nil {
				return err
			}
		}
		b.Emit(model.EvPrioritySet, map[string]interface{}{
			"collection_id": collectionID,
			"nft_id":        nftID,
			"priorities":    ids,
		})
		return nil
	})
}

func (svc *Service) validate(tx *gorm.DB, in *Input) error {
	if len(in.Src) > svc.params.MetadataLimit || len(in.Metadata) > svc.params.MetadataLimit ||
		len(in.License) > svc.params.MetadataLimit || len(in.Thumb) > svc.params.MetadataLimit {
		return errs.ErrTooLong
	}
	switch in.Kind {
	case model.ResourceBasic:
		if in.Src == "" && in.Metadata == "" && in.License == "" && in.Thumb == "" {
			return errs.ErrEmptyResource
		}
	case model.ResourceComposable:
		if in.BaseID == nil {
			return errs.ErrEmptyResource
		}
		return baseExists(tx, *in.BaseID)
	case model.ResourceSlot:
		if in.BaseID == nil || in.SlotID == nil {
			return errs.ErrEmptyResource
		}
		return baseExists(tx, *in.BaseID)
	default:
		return errs.ErrEmptyResource
	}
	return nil
}

func baseExists(tx *gorm.DB, baseID uint64) error {
	var base model.Base
	err := tx.First(&base, "id = ?", baseID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.ErrBaseDoesntExist
	}
	return err
}

func getNft(tx *gorm.DB, collectionID, nftID uint64) (*model.Nft, error) {
	var nft model.Nft
	err := tx.First(&nft, "collection_id = ? AND nft_id = ?", collectionID, nftID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrTokenDoesNotExist
	}
	if err != nil {
		return nil, err
	}
	return &nft, nil
}

func getResource(tx *gorm.DB, collectionID, nftID, resourceID uint64) (*model.Resource, error) {
	var res model.Resource
	err := tx.First(&res, "collection_id = ? AND nft_id = ? AND resource_id = ?",
		collectionID, nftID, resourceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrResourceDoesntExist
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// writeSideIndices maintains EquippableBases/EquippableSlots for an
// accepted resource.
func writeSideIndices(tx *gorm.DB, res *model.Resource) error {
	switch res.Kind {
	case model.ResourceComposable:
		eb := &model.EquippableBase{
			CollectionID: res.CollectionID,
			NftID:        res.NftID,
			BaseID:       *res.BaseID,
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(eb).Error
	case model.ResourceSlot:
		es := &model.EquippableSlot{
			CollectionID: res.CollectionID,
			NftID:        res.NftID,
			ResourceID:   res.ResourceID,
			BaseID:       *res.BaseID,
			SlotID:       *res.SlotID,
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(es).Error
	}
	return nil
}

func removeSideIndices(tx *gorm.DB, res *model.Resource) error {
	switch res.Kind {
	case model.ResourceComposable:
		if res.BaseID == nil {
			return nil
		}
		return tx.Where("collection_id = ? AND nft_id = ? AND base_id = ?",
			res.CollectionID, res.NftID, *res.BaseID).
			Delete(&model.EquippableBase{}).Error
	case model.ResourceSlot:
		if res.BaseID == nil || res.SlotID == nil {
			return nil
		}
		return tx.Where("collection_id = ? AND nft_id = ? AND resource_id = ? AND base_id = ? AND slot_id = ?",
			res.CollectionID, res.NftID, res.ResourceID, *res.BaseID, *res.SlotID).
			Delete(&model.EquippableSlot{}).Error
	}
	return nil
}

// deleteResource removes a resource row together with its side-index and
// priority entries.
func deleteResource(tx *gorm.DB, res *model.Resource) error {
	if err := removeSideIndices(tx, res); err != nil {
		return err
	}
	if err := tx.Where("collection_id = ? AND nft_id = ? AND resource_id = ?",
		res.CollectionID, res.NftID, res.ResourceID).
		Delete(&model.Priority{}).Error; err != nil {
		return err
	}
	return tx.Where("collection_id = ? AND nft_id = ? AND resource_id = ?",
		res.CollectionID, res.NftID, res.ResourceID).
		Delete(&model.Resource{}).Error
}

// CleanupNftTx removes every resource, priority and side-index row of one
// NFT. Used by the NFT service during burn.
func CleanupNftTx(tx *gorm.DB, collectionID, nftID uint64) error {
	for _, m := range []interface{}{
		&model.Resource{}, &model.Priority{},
		&model.EquippableBase{}, &model.EquippableSlot{},
	} {
		if err := tx.Where("collection_id = ? AND nft_id = ?", collectionID, nftID).
			Delete(m).Error; err != nil {
			return err
		}
	}
	return nil
}
