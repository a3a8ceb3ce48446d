package model

import "time"

// Owner kind of an NFT's immediate owner.
const (
	OwnerAccount = "account"
	OwnerNft     = "nft"
)

// Nft is a single token. The parent pointer (OwnerType + owner columns)
// and the Children index are maintained in lockstep; together they keep
// the nesting graph a forest.
type Nft struct {
	CollectionID uint64 `gorm:"primaryKey;autoIncrement:false" json:"collection_id"`
	NftID        uint64 `gorm:"primaryKey;autoIncrement:false" json:"nft_id"`

	// RootOwner is the account reached by walking parent links. It is the
	// only actor allowed to send, burn, accept, reject, or reprioritize.
	RootOwner int64 `gorm:"index:idx_nft_root_owner;not null" json:"root_owner"`

	// OwnerType selects which owner columns are meaningful:
	// "account" → OwnerAccountID, "nft" → ParentCollectionID/ParentNftID.
	OwnerType          string `gorm:"size:8;not null" json:"owner_type"`
	OwnerAccountID     int64  `json:"owner_account_id"`
	ParentCollectionID uint64 `json:"parent_collection_id"`
	ParentNftID        uint64 `json:"parent_nft_id"`

	RoyaltyRecipient  *int64  `json:"royalty_recipient"`
	RoyaltyPerMillion *uint32 `json:"royalty_per_million"`

	Metadata     string `gorm:"size:256" json:"metadata"`
	Transferable bool   `gorm:"default:true" json:"transferable"`
	Equipped     bool   `gorm:"default:false" json:"equipped"`
	// Pending is set while the NFT awaits acceptance by its new root owner.
	Pending bool `gorm:"default:false" json:"pending"`
	// Locked is the marketplace lock flag: set while listed, it blocks
	// send, burn, and resource mutation.
	Locked bool `gorm:"default:false" json:"locked"`
	// Frozen is the ledger-level freeze, settable only through the admin
	// surface. A frozen token cannot be listed.
	Frozen bool `gorm:"default:false" json:"frozen"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// OwnedByNft reports whether the immediate owner is another NFT.
func (n *Nft) OwnedByNft() bool { return n.OwnerType == OwnerNft }

// Child is one membership row of the children index:
// parent (collection, nft) → child (collection, nft).
type Child struct {
	ParentCollectionID uint64 `gorm:"primaryKey;autoIncrement:false" json:"parent_collection_id"`
	ParentNftID        uint64 `gorm:"primaryKey;autoIncrement:false" json:"parent_nft_id"`
	ChildCollectionID  uint64 `gorm:"primaryKey;autoIncrement:false" json:"child_collection_id"`
	ChildNftID         uint64 `gorm:"primaryKey;autoIncrement:false" json:"child_nft_id"`
}
