package base

import (
	"context"
	"errors"

	"github.com/rmrk-team/rmrk-substrate-sub000/config"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/errs"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/nft"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/txn"
	"github.com/rmrk-team/rmrk-substrate-sub000/event"
	"github.com/rmrk-team/rmrk-substrate-sub000/ledger"
	"github.com/rmrk-team/rmrk-substrate-sub000/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PartInput describes one part of a base at creation time.
type PartInput struct {
	PartID         uint64   `json:"part_id"`
	Kind           string   `json:"kind"` // model.PartFixed | model.PartSlot
	Z              uint32   `json:"z"`
	Src            string   `json:"src"`
	Equippable     string   `json:"equippable"` // slot parts only
	EquippableList []uint64 `json:"equippable_list"`
}

// ThemeInput is a named theme with its properties.
type ThemeInput struct {
	Name       string            `json:"name"`
	Properties map[string]string `json:"properties"`
}

// Service owns bases, their parts and themes, and the equip state that
// binds child slot resources into parent slots.
type Service struct {
	db     *gorm.DB
	led    ledger.Ledger
	rec    *event.Recorder
	params config.ChainConfig
	logger *zap.Logger
}

// NewService creates a base Service.
func NewService(db *gorm.DB, led ledger.Ledger, rec *event.Recorder, params config.ChainConfig, logger *zap.Logger) *Service {
	return &Service{db: db, led: led, rec: rec, params: params, logger: logger}
}

// CreateBase allocates a fresh base with its parts. A part id duplicated
// in the input overwrites the earlier entry.
func (svc *Service) CreateBase(ctx context.Context, caller int64, baseType, symbol string, parts []PartInput) (uint64, error) {
	var baseID uint64
	err := txn.Run(ctx, svc.db, svc.led, svc.rec, func(tx *gorm.DB, b *event.Batch) error {
		if len(parts) > svc.params.PartsLimit {
			return errs.ErrExceedsMaxPartsPerBase
		}
		base := &model.Base{Issuer: caller, BaseType: baseType, Symbol: symbol}
		if err := tx.Create(base).Error; err != nil {
			return err
		}
		seen := map[uint64]int{}
		kept := parts[:0]
		for _, p := range parts {
			if i, dup := seen[p.PartID]; dup {
				kept[i] = p
				continue
			}
			seen[p.PartID] = len(kept)
			kept = append(kept, p)
		}
		for _, p := range kept {
			row := &model.Part{
				BaseID: base.ID,
				PartID: p.PartID,
				Kind:   p.Kind,
				Z:      p.Z,
				Src:    p.Src,
			}
			if p.Kind == model.PartSlot {
				row.Equippable = p.Equippable
				if p.Equippable == model.EquippableCustom {
					row.EquippableList = datatypes.NewJSONSlice(p.EquippableList)
				}
			}
			if err := tx.Create(row).Error; err != nil {
				return err
			}
		}
		baseID = base.ID
		b.Emit(model.EvBaseCreated, map[string]interface{}{
			"base_id": base.ID,
			"issuer":  caller,
			"symbol":  symbol,
		})
		svc.logger.Info("base created", zap.Uint64("base_id", base.ID), zap.Int64("issuer", caller))
		return nil
	})
	return baseID, err
}

// ChangeBaseIssuer hands a base to a new issuer.
func (svc *Service) ChangeBaseIssuer(ctx context.Context, caller int64, baseID uint64, newIssuer int64) error {
	return txn.Run(ctx, svc.db, svc.led, svc.rec, func(tx *gorm.DB, b *event.Batch) error {
		base, err := svc.getBase(tx, baseID)
		if err != nil {
			return err
		}
		if base.Issuer != caller {
			return errs.ErrPermission
		}
		if err := tx.Model(base).Update("issuer", newIssuer).Error; err != nil {
			return err
		}
		b.Emit(model.EvBaseIssuerChanged, map[string]interface{}{
			"base_id":    baseID,
			"new_issuer": newIssuer,
		})
		return nil
	})
}

// Equippable overwrites a slot part's admission policy with "all",
// "empty", or a custom collection set.
func (svc *Service) Equippable(ctx context.Context, caller int64, baseID, slotID uint64, policy string, list []uint64) error {
	return txn.Run(ctx, svc.db, svc.led, svc.rec, func(tx *gorm.DB, b *event.Batch) error {
		_, err := svc.getSlotPart(tx, caller, baseID, slotID)
		if err != nil {
			return err
		}
		updates := map[string]interface{}{"equippable": policy}
		if policy == model.EquippableCustom {
			if len(list) > svc.params.MaxCollectionsEquippablePerPart {
				return errs.ErrTooManyEquippables
			}
			updates["equippable_list"] = datatypes.NewJSONSlice(list)
		} else {
			updates["equippable_list"] = datatypes.NewJSONSlice([]uint64(nil))
		}
		if err := tx.Model(&model.Part{}).
			Where("base_id = ? AND part_id = ?", baseID, slotID).
			Updates(updates).Error; err != nil {
			return err
		}
		b.Emit(model.EvEquippablesUpdated, map[string]interface{}{
			"base_id": baseID,
			"slot_id": slotID,
			"policy":  policy,
		})
		return nil
	})
}

// EquippableAdd appends one collection to a custom admission set. The
// slot must already use the custom policy.
func (svc *Service) EquippableAdd(ctx context.Context, caller int64, baseID, slotID, collectionID uint64) error {
	return txn.Run(ctx, svc.db, svc.led, svc.rec, func(tx *gorm.DB, b *event.Batch) error {
		part, err := svc.getSlotPart(tx, caller, baseID, slotID)
		if err != nil {
			return err
		}
		if part.Equippable != model.EquippableCustom {
			return errs.ErrNoEquippableOnFixedPart
		}
		for _, id := range part.EquippableList {
			if id == collectionID {
				return nil
			}
		}
		if len(part.EquippableList)+1 > svc.params.MaxCollectionsEquippablePerPart {
			return errs.ErrTooManyEquippables
		}
		list := append([]uint64(part.EquippableList), collectionID)
		if err := tx.Model(&model.Part{}).
			Where("base_id = ? AND part_id = ?", baseID, slotID).
			Update("equippable_list", datatypes.NewJSONSlice(list)).Error; err != nil {
			return err
		}
		b.Emit(model.EvEquippablesUpdated, map[string]interface{}{
			"base_id": baseID,
			"slot_id": slotID,
			"added":   collectionID,
		})
		return nil
	})
}

// EquippableRemove drops one collection from a custom admission set.
func (svc *Service) EquippableRemove(ctx context.Context, caller int64, baseID, slotID, collectionID uint64) error {
	return txn.Run(ctx, svc.db, svc.led, svc.rec, func(tx *gorm.DB, b *event.Batch) error {
		part, err := svc.getSlotPart(tx, caller, baseID, slotID)
		if err != nil {
			return err
		}
		if part.Equippable != model.EquippableCustom {
			return errs.ErrNoEquippableOnFixedPart
		}
		list := make([]uint64, 0, len(part.EquippableList))
		for _, id := range part.EquippableList {
			if id != collectionID {
				list = append(list, id)
			}
		}
		if err := tx.Model(&model.Part{}).
			Where("base_id = ? AND part_id = ?", baseID, slotID).
			Update("equippable_list", datatypes.NewJSONSlice(list)).Error; err != nil {
			return err
		}
		b.Emit(model.EvEquippablesUpdated, map[string]interface{}{
			"base_id": baseID,
			"slot_id": slotID,
			"removed": collectionID,
		})
		return nil
	})
}

// ThemeAdd inserts a named theme. The first theme on a base must be the
// "default" theme.
func (svc *Service) ThemeAdd(ctx context.Context, caller int64, baseID uint64, theme ThemeInput) error {
	return txn.Run(ctx, svc.db, svc.led, svc.rec, func(tx *gorm.DB, b *event.Batch) error {
		base, err := svc.getBase(tx, baseID)
		if err != nil {
			return err
		}
		if base.Issuer != caller {
			return errs.ErrPermission
		}
		if len(theme.Properties) > svc.params.MaxPropertiesPerTheme {
			return errs.ErrTooManyProperties
		}
		if theme.Name != model.DefaultThemeName {
			var count int64
			if err := tx.Model(&model.Theme{}).
				Where("base_id = ? AND name = ?", baseID, model.DefaultThemeName).
				Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return errs.ErrNeedsDefaultThemeFirst
			}
		}
		for k, v := range theme.Properties {
			row := &model.Theme{BaseID: baseID, Name: theme.Name, Key: k, Value: v}
			if err := tx.Create(row).Error; err != nil {
				return err
			}
		}
		b.Emit(model.EvThemeAdded, map[string]interface{}{
			"base_id": baseID,
			"name":    theme.Name,
		})
		return nil
	})
}

// Equip binds an item's slot resource into an equipper's base slot, or
// unbinds it when the slot already holds that item. Calling it on an
// occupied slot whose item has been burned just clears the stale entry.
func (svc *Service) Equip(ctx context.Context, caller int64, itemCollectionID, itemNftID, equipperCollectionID, equipperNftID, resourceID, baseID, slotID uint64) error {
	return txn.Run(ctx, svc.db, svc.led, svc.rec, func(tx *gorm.DB, b *event.Batch) error {
		var cur model.Equipping
		curErr := tx.First(&cur,
			"equipper_collection_id = ? AND equipper_nft_id = ? AND base_id = ? AND slot_id = ?",
			equipperCollectionID, equipperNftID, baseID, slotID).Error
		if curErr != nil && !errors.Is(curErr, gorm.ErrRecordNotFound) {
			return curErr
		}
		occupied := curErr == nil

		item, itemErr := nft.Get(tx, itemCollectionID, itemNftID)
		if itemErr != nil && !errors.Is(itemErr, errs.ErrTokenDoesNotExist) {
			return itemErr
		}

		// Stale entry left by a burn: anyone may clear it.
		if item == nil && occupied {
			return svc.unequipTx(tx, b, &cur, nil)
		}
		if item == nil {
			return errs.ErrItemDoesntExist
		}

		// Toggle path: the slot holds this exact item.
		if occupied && cur.ItemCollectionID == itemCollectionID && cur.ItemNftID == itemNftID {
			equipper, err := nft.Get(tx, equipperCollectionID, equipperNftID)
			if err != nil && !errors.Is(err, errs.ErrTokenDoesNotExist) {
				return err
			}
			allowed := item.RootOwner == caller
			if !allowed && equipper != nil {
				allowed = equipper.RootOwner == caller
			}
			if !allowed {
				return errs.ErrUnequipperMustOwnEitherItemOrEquipper
			}
			return svc.unequipTx(tx, b, &cur, item)
		}

		// Equip path.
		equipper, err := nft.Get(tx, equipperCollectionID, equipperNftID)
		if err != nil {
			if errors.Is(err, errs.ErrTokenDoesNotExist) {
				return errs.ErrEquipperDoesntExist
			}
			return err
		}
		if item.Equipped {
			return errs.ErrAlreadyEquipped
		}
		if item.RootOwner != caller || equipper.RootOwner != caller {
			return errs.ErrPermission
		}
		if !item.OwnedByNft() ||
			item.ParentCollectionID != equipperCollectionID || item.ParentNftID != equipperNftID {
			return errs.ErrMustBeDirectParent
		}

		// The equipper needs an accepted composable resource for this base.
		var eqb model.EquippableBase
		err = tx.First(&eqb, "collection_id = ? AND nft_id = ? AND base_id = ?",
			equipperCollectionID, equipperNftID, baseID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.ErrNoResourceForThisBaseFoundOnNft
		}
		if err != nil {
			return err
		}

		// The item needs the named accepted slot resource at (base, slot).
		var eqs model.EquippableSlot
		err = tx.First(&eqs,
			"collection_id = ? AND nft_id = ? AND resource_id = ? AND base_id = ? AND slot_id = ?",
			itemCollectionID, itemNftID, resourceID, baseID, slotID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.ErrItemHasNoResourceToEquipThere
		}
		if err != nil {
			return err
		}

		part, err := svc.getPart(tx, baseID, slotID)
		if err != nil {
			return err
		}
		if part.Kind != model.PartSlot {
			return errs.ErrCantEquipFixedPart
		}
		if !part.Admits(itemCollectionID) {
			return errs.ErrCollectionNotEquippable
		}

		eq := &model.Equipping{
			EquipperCollectionID: equipperCollectionID,
			EquipperNftID:        equipperNftID,
			BaseID:               baseID,
			SlotID:               slotID,
			ItemCollectionID:     itemCollectionID,
			ItemNftID:            itemNftID,
			ResourceID:           resourceID,
		}
		if err := tx.Create(eq).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Nft{}).
			Where("collection_id = ? AND nft_id = ?", itemCollectionID, itemNftID).
			Update("equipped", true).Error; err != nil {
			return err
		}
		b.Emit(model.EvSlotEquipped, map[string]interface{}{
			"item_collection_id":     itemCollectionID,
			"item_nft_id":            itemNftID,
			"equipper_collection_id": equipperCollectionID,
			"equipper_nft_id":        equipperNftID,
			"base_id":                baseID,
			"slot_id":                slotID,
			"resource_id":            resourceID,
		})
		return nil
	})
}

func (svc *Service) unequipTx(tx *gorm.DB, b *event.Batch, cur *model.Equipping, item *model.Nft) error {
	if err := tx.Where(
		"equipper_collection_id = ? AND equipper_nft_id = ? AND base_id = ? AND slot_id = ?",
		cur.EquipperCollectionID, cur.EquipperNftID, cur.BaseID, cur.SlotID).
		Delete(&model.Equipping{}).Error; err != nil {
		return err
	}
	if item != nil {
		if err := tx.Model(&model.Nft{}).
			Where("collection_id = ? AND nft_id = ?", cur.ItemCollectionID, cur.ItemNftID).
			Update("equipped", false).Error; err != nil {
			return err
		}
	}
	b.Emit(model.EvSlotUnequipped, map[string]interface{}{
		"item_collection_id":     cur.ItemCollectionID,
		"item_nft_id":            cur.ItemNftID,
		"equipper_collection_id": cur.EquipperCollectionID,
		"equipper_nft_id":        cur.EquipperNftID,
		"base_id":                cur.BaseID,
		"slot_id":                cur.SlotID,
	})
	return nil
}

// Themes returns all theme rows of a base, for the render surface.
func (svc *Service) Themes(ctx context.Context, baseID uint64) ([]model.Theme, error) {
	var themes []model.Theme
	err := svc.db.WithContext(ctx).
		Where("base_id = ?", baseID).
		Order("name, prop_key").Find(&themes).Error
	return themes, err
}

// Parts returns all parts of a base ordered by part id.
func (svc *Service) Parts(ctx context.Context, baseID uint64) ([]model.Part, error) {
	var parts []model.Part
	err := svc.db.WithContext(ctx).
		Where("base_id = ?", baseID).
		Order("part_id").Find(&parts).Error
	return parts, err
}

func (svc *Service) getBase(tx *gorm.DB, baseID uint64) (*model.Base, error) {
	var base model.Base
	err := tx.First(&base, "id = ?", baseID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrBaseDoesntExist
	}
	if err != nil {
		return nil, err
	}
	return &base, nil
}

func (svc *Service) getPart(tx *gorm.DB, baseID, partID uint64) (*model.Part, error) {
	var part model.Part
	err := tx.First(&part, "base_id = ? AND part_id = ?", baseID, partID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrPartDoesntExist
	}
	if err != nil {
		return nil, err
	}
	return &part, nil
}

// getSlotPart loads a part, requiring base-issuer authority and a slot
// kind.
func (svc *Service) getSlotPart(tx *gorm.DB, caller int64, baseID, slotID uint64) (*model.Part, error) {
	base, err := svc.getBase(tx, baseID)
	if err != nil {
		return nil, err
	}
	if base.Issuer != caller {
		return nil, errs.ErrPermission
	}
	part, err := svc.getPart(tx, baseID, slotID)
	if err != nil {
		return nil, err
	}
	if part.Kind != model.PartSlot {
		return nil, errs.ErrNoEquippableOnFixedPart
	}
	return part, nil
}
