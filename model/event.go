package model

import (
	"time"

	"gorm.io/datatypes"
)

// Event is one engine event. Events are written inside the same
// transaction as the state delta that produced them; Seq preserves the
// emission order within one operation (one TraceID = one operation).
type Event struct {
	ID      int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TraceID string         `gorm:"index:idx_event_trace;size:36;not null" json:"trace_id"`
	Seq     int            `gorm:"not null" json:"seq"`
	Name    string         `gorm:"index:idx_event_name;size:48;not null" json:"name"`
	Payload datatypes.JSON `json:"payload"`
	Block   uint64         `gorm:"index:idx_event_block;not null" json:"block"`

	CreatedAt time.Time `gorm:"autoCreateTime:milli" json:"created_at"`
}

// Engine event names.
const (
	EvCollectionCreated   = "CollectionCreated"
	EvCollectionLocked    = "CollectionLocked"
	EvCollectionDestroyed = "CollectionDestroyed"
	EvIssuerChanged       = "IssuerChanged"

	EvNftMinted   = "NFTMinted"
	EvNftSent     = "NFTSent"
	EvNftAccepted = "NFTAccepted"
	EvNftRejected = "NFTRejected"
	EvNftBurned   = "NFTBurned"

	EvPropertySet       = "PropertySet"
	EvPropertyRemoved   = "PropertyRemoved"
	EvPropertiesRemoved = "PropertiesRemoved"

	EvResourceAdded           = "ResourceAdded"
	EvResourceAccepted        = "ResourceAccepted"
	EvResourceReplaced        = "ResourceReplaced"
	EvResourceRemoval         = "ResourceRemoval"
	EvResourceRemovalAccepted = "ResourceRemovalAccepted"
	EvPrioritySet             = "PrioritySet"

	EvBaseCreated        = "BaseCreated"
	EvBaseIssuerChanged  = "BaseIssuerChanged"
	EvEquippablesUpdated = "EquippablesUpdated"
	EvThemeAdded         = "ThemeAdded"
	EvSlotEquipped       = "SlotEquipped"
	EvSlotUnequipped     = "SlotUnequipped"

	EvTokenListed    = "TokenListed"
	EvTokenUnlisted  = "TokenUnlisted"
	EvTokenSold      = "TokenSold"
	EvOfferPlaced    = "OfferPlaced"
	EvOfferWithdrawn = "OfferWithdrawn"
	EvOfferAccepted  = "OfferAccepted"
	EvMarketFeePaid  = "MarketFeePaid"
	EvRoyaltyFeePaid = "RoyaltyFeePaid"
)
