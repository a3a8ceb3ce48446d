package model

import "gorm.io/gorm"

// allModels lists every model to be auto-migrated.
var allModels = []interface{}{
	&Account{},
	&ChainState{},
	&Collection{},
	&Nft{},
	&Child{},
	&Property{},
	&Resource{},
	&Priority{},
	&EquippableBase{},
	&EquippableSlot{},
	&Base{},
	&Part{},
	&Theme{},
	&Equipping{},
	&Listing{},
	&Offer{},
	&MarketConfig{},
	&Event{},
	&AuditLog{},
}

// AutoMigrate creates or updates all tables in the given database.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(allModels...)
}
