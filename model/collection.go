package model

import "time"

// Collection is a namespace of NFTs with a single issuer and an optional
// supply cap. MintedCount is monotonic: burning never frees cap slots, so
// a collection that ever reached Max stays full forever.
type Collection struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Issuer      int64     `gorm:"index:idx_collection_issuer;not null" json:"issuer"`
	Metadata    string    `gorm:"size:256" json:"metadata"`
	Symbol      string    `gorm:"size:16;not null" json:"symbol"`
	Max         *uint32   `json:"max"`
	NftsCount   uint32    `gorm:"default:0" json:"nfts_count"`
	MintedCount uint32    `gorm:"default:0" json:"minted_count"`
	Locked      bool      `gorm:"default:false" json:"locked"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
