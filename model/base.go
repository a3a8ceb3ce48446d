package model

import (
	"time"

	"gorm.io/datatypes"
)

// Base is a schema of parts into which compatible resources compose.
type Base struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Issuer    int64     `gorm:"index:idx_base_issuer;not null" json:"issuer"`
	BaseType  string    `gorm:"size:16;not null" json:"base_type"` // e.g. "svg"
	Symbol    string    `gorm:"size:16;not null" json:"symbol"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Part kinds.
const (
	PartFixed = "fixed"
	PartSlot  = "slot"
)

// Equippable policies of a slot part.
const (
	EquippableAll    = "all"
	EquippableEmpty  = "empty"
	EquippableCustom = "custom"
)

// Part is one fixed or slot part of a base. Equippable columns are only
// meaningful for slot parts.
type Part struct {
	BaseID uint64 `gorm:"primaryKey;autoIncrement:false" json:"base_id"`
	PartID uint64 `gorm:"primaryKey;autoIncrement:false" json:"part_id"`

	Kind string `gorm:"size:8;not null" json:"kind"`
	Z    uint32 `gorm:"default:0" json:"z"`
	Src  string `gorm:"size:256" json:"src"`

	// Equippable is the admission policy of a slot part; EquippableList
	// holds the collection ids when the policy is "custom".
	Equippable     string                      `gorm:"size:8" json:"equippable"`
	EquippableList datatypes.JSONSlice[uint64] `json:"equippable_list"`
}

// Admits reports whether the part's equippable policy accepts collectionID.
func (p *Part) Admits(collectionID uint64) bool {
	switch p.Equippable {
	case EquippableAll:
		return true
	case EquippableCustom:
		for _, id := range p.EquippableList {
			if id == collectionID {
				return true
			}
		}
	}
	return false
}

// Theme is one key/value of a named theme on a base. The first theme
// inserted on a base must be named "default".
type Theme struct {
	ID     int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	BaseID uint64 `gorm:"uniqueIndex:idx_theme_key,priority:1;not null" json:"base_id"`
	Name   string `gorm:"uniqueIndex:idx_theme_key,priority:2;size:32;not null" json:"name"`
	Key    string `gorm:"column:prop_key;uniqueIndex:idx_theme_key,priority:3;size:64;not null" json:"key"`
	Value  string `gorm:"column:prop_value;size:256" json:"value"`
}

// DefaultThemeName is the theme every base must define first.
const DefaultThemeName = "default"

// Equipping records that a child NFT's slot resource occupies a parent
// NFT's base slot.
type Equipping struct {
	EquipperCollectionID uint64 `gorm:"primaryKey;autoIncrement:false" json:"equipper_collection_id"`
	EquipperNftID        uint64 `gorm:"primaryKey;autoIncrement:false" json:"equipper_nft_id"`
	BaseID               uint64 `gorm:"primaryKey;autoIncrement:false" json:"base_id"`
	SlotID               uint64 `gorm:"primaryKey;autoIncrement:false" json:"slot_id"`

	ItemCollectionID uint64 `gorm:"not null" json:"item_collection_id"`
	ItemNftID        uint64 `gorm:"not null" json:"item_nft_id"`
	ResourceID       uint64 `gorm:"not null" json:"resource_id"`
}
