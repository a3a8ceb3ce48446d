package market

import (
	"context"
	"errors"

	"github.com/rmrk-team/rmrk-substrate-sub000/config"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/errs"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/nft"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/txn"
	"github.com/rmrk-team/rmrk-substrate-sub000/event"
	"github.com/rmrk-team/rmrk-substrate-sub000/ledger"
	"github.com/rmrk-team/rmrk-substrate-sub000/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service owns fixed-price listings, offers and sale settlement. While a
// listing is active the NFT's lock flag blocks send, burn and resource
// mutation.
type Service struct {
	db     *gorm.DB
	led    ledger.Ledger
	nfts   *nft.Service
	rec    *event.Recorder
	params config.ChainConfig
	logger *zap.Logger
}

// NewService creates a marketplace Service.
func NewService(db *gorm.DB, led ledger.Ledger, nfts *nft.Service, rec *event.Recorder, params config.ChainConfig, logger *zap.Logger) *Service {
	return &Service{db: db, led: led, nfts: nfts, rec: rec, params: params, logger: logger}
}

// SetOwner configures the marketplace fee recipient (admin surface).
func (svc *Service) SetOwner(ctx context.Context, owner int64) error {
	return svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cfg := &model.MarketConfig{ID: 1, Owner: &owner}
		return tx.Save(cfg).Error
	})
}

// List puts an NFT up for fixed-price sale and takes the per-NFT lock.
func (svc *Service) List(ctx context.Context, caller int64, collectionID, nftID uint64, amount int64, expires *uint64) error {
	return txn.Run(ctx, svc.db, svc.led, svc.rec, func(tx *gorm.DB, b *event.Batch) error {
		owner, err := svc.led.TokenOwner(tx, collectionID, nftID)
		if err != nil {
			return err
		}
		if owner != caller {
			return errs.ErrNoPermission
		}
		n, err := nft.Get(tx, collectionID, nftID)
		if err != nil {
			return err
		}
		if n.OwnedByNft() {
			return errs.ErrCannotListNftOwnedByNft
		}
		if n.Pending || n.Locked {
			return errs.ErrNftIsLocked
		}
		if !n.Transferable {
			return errs.ErrNonTransferable
		}
		frozen, err := svc.led.TokenFrozen(tx, collectionID, nftID)
		if err != nil {
			return err
		}
		if frozen {
			return errs.ErrNftIsLocked
		}
		if err := tx.Model(&model.Nft{}).
			Where("collection_id = ? AND nft_id = ?", collectionID, nftID).
			Update("locked", true).Error; err != nil {
			return err
		}
		listing := &model.Listing{
			CollectionID: collectionID,
			NftID:        nftID,
			ListedBy:     caller,
			Amount:       amount,
			Expires:      expires,
		}
		if err := tx.Create(listing).Error; err != nil {
			return err
		}
		b.Emit(model.EvTokenListed, map[string]interface{}{
			"collection_id": collectionID,
			"nft_id":        nftID,
			"listed_by":     caller,
			"amount":        amount,
			"expires":       expires,
		})
		svc.logger.Info("token listed",
			zap.Uint64("collection_id", collectionID), zap.Uint64("nft_id", nftID),
			zap.Int64("amount", amount))
		return nil
	})
}

// Unlist removes a listing and releases the lock.
func (svc *Service) Unlist(ctx context.Context, caller int64, collectionID, nftID uint64) error {
	return txn.Run(ctx, svc.db, svc.led, svc.rec, func(tx *gorm.DB, b *event.Batch) error {
		owner, err := svc.led.TokenOwner(tx, collectionID, nftID)
		if err != nil {
			return err
		}
		if owner != caller {
			return errs.ErrNoPermission
		}
		listing, err := svc.getListing(tx, collectionID, nftID)
		if err != nil {
			if errors.Is(err, errs.ErrTokenNotForSale) {
				return errs.ErrCannotUnlistToken
			}
			return err
		}
		if err := svc.dropListing(tx, listing); err != nil {
			return err
		}
		b.Emit(model.EvTokenUnlisted, map[string]interface{}{
			"collection_id": collectionID,
			"nft_id":        nftID,
		})
		return nil
	})
}

// Buy settles an active listing at its asked amount. ExpectedAmount, when
// non-nil, guards against a relist between read and buy.
func (svc *Service) Buy(ctx context.Context, caller int64, collectionID, nftID uint64, expectedAmount *int64) error {
	return txn.Run(ctx, svc.db, svc.led, svc.rec, func(tx *gorm.DB, b *event.Batch) error {
		owner, err := svc.led.TokenOwner(tx, collectionID, nftID)
		if err != nil {
			return err
		}
		if owner == caller {
			return errs.ErrCannotBuyOwnToken
		}
		listing, err := svc.getListing(tx, collectionID, nftID)
		if err != nil {
			return err
		}
		if listing.ListedBy != owner {
			return errs.ErrTokenNotForSale
		}
		if listing.Expires != nil {
			block, err := svc.led.CurrentBlock(tx)
			if err != nil {
				return err
			}
			if *listing.Expires <= block {
				return errs.ErrListingHasExpired
			}
		}
		if expectedAmount != nil && *expectedAmount != listing.Amount {
			return errs.ErrPriceDiffersFromExpected
		}
		if err := svc.settle(tx, b, owner, caller, collectionID, nftID, listing.Amount); err != nil {
			return err
		}
		b.Emit(model.EvTokenSold, map[string]interface{}{
			"collection_id": collectionID,
			"nft_id":        nftID,
			"seller":        owner,
			"buyer":         caller,
			"amount":        listing.Amount,
		})
		svc.logger.Info("token sold",
			zap.Uint64("collection_id", collectionID), zap.Uint64("nft_id", nftID),
			zap.Int64("buyer", caller), zap.Int64("amount", listing.Amount))
		return nil
	})
}

// MakeOffer places a bid backed by a reserve on the maker's balance.
func (svc *Service) MakeOffer(ctx context.Context, caller int64, collectionID, nftID uint64, amount int64, expires *uint64) error {
	return txn.Run(ctx, svc.db, svc.led, svc.rec, func(tx *gorm.DB, b *event.Batch) error {
		owner, err := svc.led.TokenOwner(tx, collectionID, nftID)
		if err != nil {
			return err
		}
		if owner == caller {
			return errs.ErrCannotOfferOnOwnToken
		}
		if amount < svc.params.MinimumOfferAmount {
			return errs.ErrOfferTooLow
		}
		var existing model.Offer
		err = tx.First(&existing, "collection_id = ? AND nft_id = ? AND maker = ?",
			collectionID, nftID, caller).Error
		if err == nil {
			return errs.ErrAlreadyOffered
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := svc.led.Reserve(tx, caller, amount); err != nil {
			return err
		}
		offer := &model.Offer{
			CollectionID: collectionID,
			NftID:        nftID,
			Maker:        caller,
			Amount:       amount,
			Expires:      expires,
		}
		if err := tx.Create(offer).Error; err != nil {
			return err
		}
		b.Emit(model.EvOfferPlaced, map[string]interface{}{
			"collection_id": collectionID,
			"nft_id":        nftID,
			"maker":         caller,
			"amount":        amount,
			"expires":       expires,
		})
		return nil
	})
}

// WithdrawOffer cancels an offer and releases the reserve. The maker may
// always withdraw; the current owner may also clear offers on their
// token. Offers outlive the token, so the maker can still withdraw after
// a burn.
func (svc *Service) WithdrawOffer(ctx context.Context, caller int64, collectionID, nftID uint64, maker int64) error {
	return txn.Run(ctx, svc.db, svc.led, svc.rec, func(tx *gorm.DB, b *event.Batch) error {
		offer, err := svc.getOffer(tx, collectionID, nftID, maker)
		if err != nil {
			return err
		}
		if caller != maker {
			owner, err := svc.led.TokenOwner(tx, collectionID, nftID)
			if err != nil || owner != caller {
				return errs.ErrCannotWithdrawOffer
			}
		}
		if err := svc.led.Unreserve(tx, maker, offer.Amount); err != nil {
			return err
		}
		if err := tx.Where("collection_id = ? AND nft_id = ? AND maker = ?",
			collectionID, nftID, maker).Delete(&model.Offer{}).Error; err != nil {
			return err
		}
		b.Emit(model.EvOfferWithdrawn, map[string]interface{}{
			"collection_id": collectionID,
			"nft_id":        nftID,
			"maker":         maker,
		})
		return nil
	})
}

// AcceptOffer sells the token to an offer maker at the offered amount.
func (svc *Service) AcceptOffer(ctx context.Context, caller int64, collectionID, nftID uint64, maker int64) error {
	return txn.Run(ctx, svc.db, svc.led, svc.rec, func(tx *gorm.DB, b *event.Batch) error {
		owner, err := svc.led.TokenOwner(tx, collectionID, nftID)
		if err != nil {
			return err
		}
		if owner != caller {
			return errs.ErrNoPermission
		}
		offer, err := svc.getOffer(tx, collectionID, nftID, maker)
		if err != nil {
			return err
		}
		if offer.Expires != nil {
			block, err := svc.led.CurrentBlock(tx)
			if err != nil {
				return err
			}
			if *offer.Expires <= block {
				return errs.ErrOfferHasExpired
			}
		}
		if err := svc.led.Unreserve(tx, maker, offer.Amount); err != nil {
			return err
		}
		if err := tx.Where("collection_id = ? AND nft_id = ? AND maker = ?",
			collectionID, nftID, maker).Delete(&model.Offer{}).Error; err != nil {
			return err
		}
		if err := svc.settle(tx, b, owner, maker, collectionID, nftID, offer.Amount); err != nil {
			return err
		}
		b.Emit(model.EvOfferAccepted, map[string]interface{}{
			"collection_id": collectionID,
			"nft_id":        nftID,
			"seller":        owner,
			"buyer":         maker,
			"amount":        offer.Amount,
		})
		return nil
	})
}

// settle moves the token and the money for one sale: drop any listing,
// release the lock, split fees, then send through the normal path so
// transferability is re-checked.
func (svc *Service) settle(tx *gorm.DB, b *event.Batch, seller, buyer int64, collectionID, nftID uint64, price int64) error {
	var listing model.Listing
	err := tx.First(&listing, "collection_id = ? AND nft_id = ?", collectionID, nftID).Error
	if err == nil {
		if err := svc.dropListing(tx, &listing); err != nil {
			return err
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	} else {
		// Offer acceptance on an unlisted token still needs the lock clear
		// to be a no-op rather than an error.
		if err := tx.Model(&model.Nft{}).
			Where("collection_id = ? AND nft_id = ?", collectionID, nftID).
			Update("locked", false).Error; err != nil {
			return err
		}
	}

	marketFee := perMillion(price, svc.params.MarketFee)
	if marketFee > 0 {
		var cfg model.MarketConfig
		err := tx.First(&cfg, "id = ?", 1).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && cfg.Owner == nil) {
			return errs.ErrMarketplaceOwnerNotSet
		}
		if err != nil {
			return err
		}
		if err := svc.led.Transfer(tx, buyer, *cfg.Owner, marketFee); err != nil {
			return err
		}
		b.Emit(model.EvMarketFeePaid, map[string]interface{}{
			"collection_id": collectionID,
			"nft_id":        nftID,
			"amount":        marketFee,
			"recipient":     *cfg.Owner,
		})
	}

	n, err := nft.Get(tx, collectionID, nftID)
	if err != nil {
		return err
	}
	var royaltyFee int64
	if n.RoyaltyPerMillion != nil && n.RoyaltyRecipient != nil {
		royaltyFee = perMillion(price, *n.RoyaltyPerMillion)
		if royaltyFee > 0 {
			if err := svc.led.Transfer(tx, buyer, *n.RoyaltyRecipient, royaltyFee); err != nil {
				return err
			}
			b.Emit(model.EvRoyaltyFeePaid, map[string]interface{}{
				"collection_id": collectionID,
				"nft_id":        nftID,
				"amount":        royaltyFee,
				"recipient":     *n.RoyaltyRecipient,
			})
		}
	}

	if err := svc.led.Transfer(tx, buyer, seller, price-marketFee-royaltyFee); err != nil {
		return err
	}
	return svc.nfts.SendTx(tx, b, seller, collectionID, nftID, nft.ToAccount(buyer))
}

func (svc *Service) dropListing(tx *gorm.DB, listing *model.Listing) error {
	if err := tx.Where("collection_id = ? AND nft_id = ?",
		listing.CollectionID, listing.NftID).Delete(&model.Listing{}).Error; err != nil {
		return err
	}
	return tx.Model(&model.Nft{}).
		Where("collection_id = ? AND nft_id = ?", listing.CollectionID, listing.NftID).
		Update("locked", false).Error
}

func (svc *Service) getListing(tx *gorm.DB, collectionID, nftID uint64) (*model.Listing, error) {
	var listing model.Listing
	err := tx.First(&listing, "collection_id = ? AND nft_id = ?", collectionID, nftID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrTokenNotForSale
	}
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

func (svc *Service) getOffer(tx *gorm.DB, collectionID, nftID uint64, maker int64) (*model.Offer, error) {
	var offer model.Offer
	err := tx.First(&offer, "collection_id = ? AND nft_id = ? AND maker = ?",
		collectionID, nftID, maker).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrUnknownOffer
	}
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

// SweepExpired removes listings and offers whose expiry block has passed,
// releasing locks and reserves. Driven by the block scheduler.
func (svc *Service) SweepExpired(ctx context.Context) error {
	return txn.Run(ctx, svc.db, svc.led, svc.rec, func(tx *gorm.DB, b *event.Batch) error {
		block, err := svc.led.CurrentBlock(tx)
		if err != nil {
			return err
		}
		var listings []model.Listing
		if err := tx.Where("expires IS NOT NULL AND expires <= ?", block).
			Find(&listings).Error; err != nil {
			return err
		}
		for i := range listings {
			if err := svc.dropListing(tx, &listings[i]); err != nil {
				return err
			}
			b.Emit(model.EvTokenUnlisted, map[string]interface{}{
				"collection_id": listings[i].CollectionID,
				"nft_id":        listings[i].NftID,
				"expired":       true,
			})
		}
		var offers []model.Offer
		if err := tx.Where("expires IS NOT NULL AND expires <= ?", block).
			Find(&offers).Error; err != nil {
			return err
		}
		for i := range offers {
			o := &offers[i]
			if err := svc.led.Unreserve(tx, o.Maker, o.Amount); err != nil {
				return err
			}
			if err := tx.Where("collection_id = ? AND nft_id = ? AND maker = ?",
				o.CollectionID, o.NftID, o.Maker).Delete(&model.Offer{}).Error; err != nil {
				return err
			}
			b.Emit(model.EvOfferWithdrawn, map[string]interface{}{
				"collection_id": o.CollectionID,
				"nft_id":        o.NftID,
				"maker":         o.Maker,
				"expired":       true,
			})
		}
		if len(listings) > 0 || len(offers) > 0 {
			svc.logger.Info("market sweep",
				zap.Uint64("block", block),
				zap.Int("listings", len(listings)), zap.Int("offers", len(offers)))
		}
		return nil
	})
}

// perMillion computes floor(amount * frac / 1e6) without overflowing on
// large prices.
func perMillion(amount int64, frac uint32) int64 {
	if amount <= 0 || frac == 0 {
		return 0
	}
	a := uint64(amount)
	f := uint64(frac)
	return int64(a/1_000_000*f + a%1_000_000*f/1_000_000)
}
