package ledger

import (
	"errors"

	"github.com/rmrk-team/rmrk-substrate-sub000/core/errs"
	"github.com/rmrk-team/rmrk-substrate-sub000/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Ledger is the narrow host-ledger surface the engine consumes: block
// height, balance movement, and unique-token bookkeeping. Every method
// works through the transaction handle it is given so its writes revert
// with the enclosing operation.
type Ledger interface {
	CurrentBlock(tx *gorm.DB) (uint64, error)
	Transfer(tx *gorm.DB, from, to int64, amount int64) error
	Reserve(tx *gorm.DB, account int64, amount int64) error
	Unreserve(tx *gorm.DB, account int64, amount int64) error
	TokenOwner(tx *gorm.DB, collectionID, nftID uint64) (int64, error)
	TokenFrozen(tx *gorm.DB, collectionID, nftID uint64) (bool, error)
}

// GormLedger implements Ledger over the engine's own database: accounts
// carry free/reserved balances, ChainState carries the block clock, and
// token ownership resolves to the NFT's root owner.
type GormLedger struct {
	logger *zap.Logger
}

// New creates a GormLedger.
func New(logger *zap.Logger) *GormLedger {
	return &GormLedger{logger: logger}
}

// InitChain ensures the single ChainState row exists.
func InitChain(db *gorm.DB) error {
	var st model.ChainState
	err := db.First(&st, "id = ?", 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.Create(&model.ChainState{ID: 1, Height: 1}).Error
	}
	return err
}

// CurrentBlock returns the current block height.
func (l *GormLedger) CurrentBlock(tx *gorm.DB) (uint64, error) {
	var st model.ChainState
	if err := tx.First(&st, "id = ?", 1).Error; err != nil {
		return 0, err
	}
	return st.Height, nil
}

// AdvanceBlock bumps the block height by n and returns the new height.
func (l *GormLedger) AdvanceBlock(db *gorm.DB, n uint64) (uint64, error) {
	var height uint64
	err := db.Transaction(func(tx *gorm.DB) error {
		var st model.ChainState
		if err := tx.First(&st, "id = ?", 1).Error; err != nil {
			return err
		}
		st.Height += n
		height = st.Height
		return tx.Save(&st).Error
	})
	return height, err
}

// Transfer moves amount of free balance from one account to another.
// A zero amount is a no-op; negative amounts are rejected so callers can
// never settle in the reverse direction.
func (l *GormLedger) Transfer(tx *gorm.DB, from, to int64, amount int64) error {
	if amount < 0 {
		return errs.ErrInvalidAmount
	}
	if amount == 0 || from == to {
		return nil
	}
	var src model.Account
	if err := tx.First(&src, "id = ?", from).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.ErrAccountUnknown
		}
		return err
	}
	if src.Free < amount {
		return errs.ErrInsufficientBalance
	}
	var dst model.Account
	if err := tx.First(&dst, "id = ?", to).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.ErrAccountUnknown
		}
		return err
	}
	if err := tx.Model(&src).Update("free", gorm.Expr("free - ?", amount)).Error; err != nil {
		return err
	}
	if err := tx.Model(&dst).Update("free", gorm.Expr("free + ?", amount)).Error; err != nil {
		return err
	}
	l.logger.Debug("balance transfer",
		zap.Int64("from", from), zap.Int64("to", to), zap.Int64("amount", amount))
	return nil
}

// Reserve moves amount from the account's free balance to its reserved
// balance.
func (l *GormLedger) Reserve(tx *gorm.DB, account int64, amount int64) error {
	if amount <= 0 {
		return errs.ErrInvalidAmount
	}
	var acc model.Account
	if err := tx.First(&acc, "id = ?", account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.ErrAccountUnknown
		}
		return err
	}
	if acc.Free < amount {
		return errs.ErrInsufficientBalance
	}
	return tx.Model(&acc).Updates(map[string]interface{}{
		"free":     gorm.Expr("free - ?", amount),
		"reserved": gorm.Expr("reserved + ?", amount),
	}).Error
}

// Unreserve moves amount back from reserved to free.
func (l *GormLedger) Unreserve(tx *gorm.DB, account int64, amount int64) error {
	if amount <= 0 {
		return errs.ErrInvalidAmount
	}
	var acc model.Account
	if err := tx.First(&acc, "id = ?", account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.ErrAccountUnknown
		}
		return err
	}
	if acc.Reserved < amount {
		return errs.ErrInsufficientBalance
	}
	return tx.Model(&acc).Updates(map[string]interface{}{
		"free":     gorm.Expr("free + ?", amount),
		"reserved": gorm.Expr("reserved - ?", amount),
	}).Error
}

// TokenOwner returns the root owner of the token, the source of truth for
// ownership checks at marketplace boundaries.
func (l *GormLedger) TokenOwner(tx *gorm.DB, collectionID, nftID uint64) (int64, error) {
	var nft model.Nft
	err := tx.First(&nft, "collection_id = ? AND nft_id = ?", collectionID, nftID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, errs.ErrTokenDoesNotExist
	}
	if err != nil {
		return 0, err
	}
	return nft.RootOwner, nil
}

// TokenFrozen reports the ledger-level freeze flag.
func (l *GormLedger) TokenFrozen(tx *gorm.DB, collectionID, nftID uint64) (bool, error) {
	var nft model.Nft
	err := tx.First(&nft, "collection_id = ? AND nft_id = ?", collectionID, nftID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, errs.ErrTokenDoesNotExist
	}
	if err != nil {
		return false, err
	}
	return nft.Frozen, nil
}

// SetTokenFrozen sets the ledger-level freeze flag (admin surface only).
func (l *GormLedger) SetTokenFrozen(db *gorm.DB, collectionID, nftID uint64, frozen bool) error {
	res := db.Model(&model.Nft{}).
		Where("collection_id = ? AND nft_id = ?", collectionID, nftID).
		Update("frozen", frozen)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.ErrTokenDoesNotExist
	}
	return nil
}

// Credit adds free balance to an account (admin faucet).
func (l *GormLedger) Credit(db *gorm.DB, account int64, amount int64) error {
	if amount <= 0 {
		return errs.ErrInvalidAmount
	}
	res := db.Model(&model.Account{}).Where("id = ?", account).
		Update("free", gorm.Expr("free + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.ErrAccountUnknown
	}
	return nil
}
