package model

import "time"

// Account is a ledger account. Free and Reserved together form the
// account's balance; offers move funds from Free to Reserved until the
// offer is withdrawn or accepted.
type Account struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string     `gorm:"uniqueIndex;size:32;not null" json:"username"`
	PasswordHash string     `gorm:"size:64;not null" json:"-"`
	Status       int        `gorm:"default:1" json:"status"` // 0=banned 1=normal
	Free         int64      `gorm:"default:0" json:"free"`
	Reserved     int64      `gorm:"default:0" json:"reserved"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	LastLoginIP  string     `gorm:"size:45" json:"last_login_ip"`
}

// ChainState is the single-row block clock. Every expiry in the engine is
// expressed against Height; wall-clock time is never consulted.
type ChainState struct {
	ID     uint32 `gorm:"primaryKey" json:"id"`
	Height uint64 `gorm:"default:0" json:"height"`
}
