package model

import "time"

// Listing is a fixed-price sale offer placed by the owner of an NFT.
// Expires is a block height; a listing is buyable only while
// expires > current block.
type Listing struct {
	CollectionID uint64    `gorm:"primaryKey;autoIncrement:false" json:"collection_id"`
	NftID        uint64    `gorm:"primaryKey;autoIncrement:false" json:"nft_id"`
	ListedBy     int64     `gorm:"index:idx_listing_seller;not null" json:"listed_by"`
	Amount       int64     `gorm:"not null" json:"amount"`
	Expires      *uint64   `json:"expires"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Offer is a bid placed by a non-owner, backed by a reserved balance.
type Offer struct {
	CollectionID uint64    `gorm:"primaryKey;autoIncrement:false" json:"collection_id"`
	NftID        uint64    `gorm:"primaryKey;autoIncrement:false" json:"nft_id"`
	Maker        int64     `gorm:"primaryKey;autoIncrement:false" json:"maker"`
	Amount       int64     `gorm:"not null" json:"amount"`
	Expires      *uint64   `json:"expires"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// MarketConfig is the single-row marketplace configuration. Owner receives
// the protocol fee; while unset, sales with a non-zero fee fail.
type MarketConfig struct {
	ID    uint32 `gorm:"primaryKey" json:"id"`
	Owner *int64 `json:"owner"`
}
