package model

// Property is one key/value pair scoped to a collection or to one NFT.
// NftScoped=false rows are collection-level properties (NftID is then 0
// and meaningless).
type Property struct {
	ID           int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	CollectionID uint64 `gorm:"uniqueIndex:idx_property_scope_key,priority:1;not null" json:"collection_id"`
	NftScoped    bool   `gorm:"uniqueIndex:idx_property_scope_key,priority:2;not null" json:"nft_scoped"`
	NftID        uint64 `gorm:"uniqueIndex:idx_property_scope_key,priority:3" json:"nft_id"`
	Key          string `gorm:"column:prop_key;uniqueIndex:idx_property_scope_key,priority:4;size:64;not null" json:"key"`
	Value        string `gorm:"column:prop_value;size:256" json:"value"`
}
