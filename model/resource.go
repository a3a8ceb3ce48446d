package model

import (
	"time"

	"gorm.io/datatypes"
)

// Resource kinds.
const (
	ResourceBasic      = "basic"
	ResourceComposable = "composable"
	ResourceSlot       = "slot"
)

// Resource is a renderable or data asset attached to an NFT.
//
// Column use per kind:
//   - basic:      Src/Metadata/License/Thumb only.
//   - composable: BaseID set, Parts set; SlotBaseID/SlotID optionally name
//     a (base, slot) this resource itself fits into.
//   - slot:       BaseID and SlotID set.
type Resource struct {
	CollectionID uint64 `gorm:"primaryKey;autoIncrement:false" json:"collection_id"`
	NftID        uint64 `gorm:"primaryKey;autoIncrement:false" json:"nft_id"`
	ResourceID   uint64 `gorm:"primaryKey;autoIncrement:false" json:"resource_id"`

	Kind string `gorm:"size:12;not null" json:"kind"`

	Src      string `gorm:"size:256" json:"src"`
	Metadata string `gorm:"size:256" json:"metadata"`
	License  string `gorm:"size:256" json:"license"`
	Thumb    string `gorm:"size:256" json:"thumb"`

	BaseID     *uint64                      `json:"base_id"`
	SlotID     *uint64                      `json:"slot_id"`
	SlotBaseID *uint64                      `json:"slot_base_id"`
	Parts      datatypes.JSONSlice[uint64]  `json:"parts"`

	// Pending is set when the issuer attached the resource to an NFT whose
	// root owner is someone else; the side indices below are only written
	// once the owner accepts.
	Pending bool `gorm:"default:false" json:"pending"`
	// PendingRemoval is set when the issuer asked to remove a resource on a
	// foreign-rooted NFT; the row stays until the owner accepts the removal.
	PendingRemoval bool `gorm:"default:false" json:"pending_removal"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Empty reports whether the resource carries no payload at all.
func (r *Resource) Empty() bool {
	return r.Src == "" && r.Metadata == "" && r.License == "" && r.Thumb == "" &&
		r.BaseID == nil && r.SlotID == nil && len(r.Parts) == 0
}

// Priority is the advisory render order of one resource on one NFT.
// Lower values render first. The whole table for an NFT is rewritten by
// every set-priority call.
type Priority struct {
	CollectionID uint64 `gorm:"primaryKey;autoIncrement:false" json:"collection_id"`
	NftID        uint64 `gorm:"primaryKey;autoIncrement:false" json:"nft_id"`
	ResourceID   uint64 `gorm:"primaryKey;autoIncrement:false" json:"resource_id"`
	Priority     uint32 `gorm:"not null" json:"priority"`
}

// EquippableBase marks that an NFT carries an accepted composable resource
// for the given base. Maintained only on accept, removed with the resource.
type EquippableBase struct {
	CollectionID uint64 `gorm:"primaryKey;autoIncrement:false" json:"collection_id"`
	NftID        uint64 `gorm:"primaryKey;autoIncrement:false" json:"nft_id"`
	BaseID       uint64 `gorm:"primaryKey;autoIncrement:false" json:"base_id"`
}

// EquippableSlot marks that an NFT carries an accepted slot resource for
// the given (base, slot). Maintained only on accept, removed with the
// resource.
type EquippableSlot struct {
	CollectionID uint64 `gorm:"primaryKey;autoIncrement:false" json:"collection_id"`
	NftID        uint64 `gorm:"primaryKey;autoIncrement:false" json:"nft_id"`
	ResourceID   uint64 `gorm:"primaryKey;autoIncrement:false" json:"resource_id"`
	BaseID       uint64 `gorm:"primaryKey;autoIncrement:false" json:"base_id"`
	SlotID       uint64 `gorm:"primaryKey;autoIncrement:false" json:"slot_id"`
}
