package nft

import (
	"context"
	"errors"

	"github.com/rmrk-team/rmrk-substrate-sub000/config"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/collection"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/errs"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/resource"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/txn"
	"github.com/rmrk-team/rmrk-substrate-sub000/event"
	"github.com/rmrk-team/rmrk-substrate-sub000/ledger"
	"github.com/rmrk-team/rmrk-substrate-sub000/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Target names the new owner of a send: an account or another NFT.
type Target struct {
	Kind         string `json:"kind"` // model.OwnerAccount | model.OwnerNft
	AccountID    int64  `json:"account_id"`
	CollectionID uint64 `json:"collection_id"`
	NftID        uint64 `json:"nft_id"`
}

// ToAccount builds an account target.
func ToAccount(accountID int64) Target {
	return Target{Kind: model.OwnerAccount, AccountID: accountID}
}

// ToNft builds an NFT target.
func ToNft(collectionID, nftID uint64) Target {
	return Target{Kind: model.OwnerNft, CollectionID: collectionID, NftID: nftID}
}

// MintOptions carries the optional mint parameters.
type MintOptions struct {
	RoyaltyRecipient  *int64
	RoyaltyPerMillion *uint32
	Metadata          string
	Transferable      bool
	Resources         []resource.Input
}

// Service owns the NFT registry and the nesting tree. All recursive walks
// (burn, root-owner refresh, descent checks) are iterative worklists
// bounded by the nesting budget; exhausting the budget fails the whole
// operation atomically.
type Service struct {
	db     *gorm.DB
	led    ledger.Ledger
	res    *resource.Service
	rec    *event.Recorder
	params config.ChainConfig
	logger *zap.Logger
}

// NewService creates an NFT Service.
func NewService(db *gorm.DB, led ledger.Ledger, res *resource.Service, rec *event.Recorder, params config.ChainConfig, logger *zap.Logger) *Service {
	return &Service{db: db, led: led, res: res, rec: rec, params: params, logger: logger}
}

// MintToAccount mints a fresh NFT directly to an account.
func (svc *Service) MintToAccount(ctx context.Context, caller, recipient int64, collectionID, nftID uint64, opts MintOptions) error {
	return txn.Run(ctx, svc.db, svc.led, svc.rec, func(tx *gorm.DB, b *event.Batch) error {
		return svc.mintTx(tx, b, caller, collectionID, nftID, opts, ToAccount(recipient))
	})
}

// MintToNft mints a fresh NFT directly into another NFT. The new NFT is
// pending when the parent's root owner is not the minter.
func (svc *Service) MintToNft(ctx context.Context, caller int64, parentCollectionID, parentNftID, collectionID, nftID uint64, opts MintOptions) error {
	return txn.Run(ctx, svc.db, svc.led, svc.rec, func(tx *gorm.DB, b *event.Batch) error {
		return svc.mintTx(tx, b, caller, collectionID, nftID, opts, ToNft(parentCollectionID, parentNftID))
	})
}

func (svc *Service) mintTx(tx *gorm.DB, b *event.Batch, caller int64, collectionID, nftID uint64, opts MintOptions, into Target) error {
	if len(opts.Metadata) > svc.params.MetadataLimit {
		return errs.ErrTooLong
	}
	if len(opts.Resources) > svc.params.MaxResourcesOnMint {
		return errs.ErrTooManyResources
	}
	col, err := collection.Get(tx, collectionID)
	if err != nil {
		return err
	}
	if col.Issuer != caller {
		return errs.ErrNoPermission
	}
	// Locked collections never mint again; neither do collections that
	// ever reached their cap (burns do not free slots).
	if col.Locked {
		return errs.ErrCollectionFullOrLocked
	}
	if col.Max != nil && col.MintedCount >= *col.Max {
		return errs.ErrCollectionFullOrLocked
	}
	var existing model.Nft
	err = tx.First(&existing, "collection_id = ? AND nft_id = ?", collectionID, nftID).Error
	if err == nil {
		return errs.ErrNftAlreadyExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	n := &model.Nft{
		CollectionID: collectionID,
		NftID:        nftID,
		Metadata:     opts.Metadata,
		Transferable: opts.Transferable,
	}
	// A royalty without an amount is no royalty at all; an amount without
	// a recipient falls to the issuer.
	if opts.RoyaltyPerMillion != nil {
		n.RoyaltyPerMillion = opts.RoyaltyPerMillion
		if opts.RoyaltyRecipient != nil {
			n.RoyaltyRecipient = opts.RoyaltyRecipient
		} else {
			issuer := col.Issuer
			n.RoyaltyRecipient = &issuer
		}
	}

	switch into.Kind {
	case model.OwnerAccount:
		n.OwnerType = model.OwnerAccount
		n.OwnerAccountID = into.AccountID
		n.RootOwner = into.AccountID
	case model.OwnerNft:
		parent, err := Get(tx, into.CollectionID, into.NftID)
		if err != nil {
			return err
		}
		n.OwnerType = model.OwnerNft
		n.ParentCollectionID = into.CollectionID
		n.ParentNftID = into.NftID
		n.RootOwner = parent.RootOwner
		n.Pending = parent.RootOwner != caller
		child := &model.Child{
			ParentCollectionID: into.CollectionID,
			ParentNftID:        into.NftID,
			ChildCollectionID:  collectionID,
			ChildNftID:         nftID,
		}
		if err := tx.Create(child).Error; err != nil {
			return err
		}
	default:
		return errs.ErrTokenDoesNotExist
	}

	if err := tx.Create(n).Error; err != nil {
		return err
	}
	if err := tx.Model(&model.Collection{}).Where("id = ?", collectionID).
		Updates(map[string]interface{}{
			"nfts_count":   gorm.Expr("nfts_count + 1"),
			"minted_count": gorm.Expr("minted_count + 1"),
		}).Error; err != nil {
		return err
	}
	b.Emit(model.EvNftMinted, map[string]interface{}{
		"collection_id": collectionID,
		"nft_id":        nftID,
		"root_owner":    n.RootOwner,
		"pending":       n.Pending,
	})

	for _, in := range opts.Resources {
		if err := svc.res.AddTx(tx, b, caller, collectionID, nftID, in); err != nil {
			return err
		}
	}
	svc.logger.Info("nft minted",
		zap.Uint64("collection_id", collectionID), zap.Uint64("nft_id", nftID),
		zap.Int64("root_owner", n.RootOwner))
	return nil
}

// Send moves an NFT to a new owner (account or NFT). Sends into an NFT
// rooted at a foreign account leave the NFT pending until accepted.
func (svc *Service) Send(ctx context.Context, caller int64, collectionID, nftID uint64, to Target) error {
	return txn.Run(ctx, svc.db, svc.led, svc.rec, func(tx *gorm.DB, b *event.Batch) error {
		return svc.SendTx(tx, b, caller, collectionID, nftID, to)
	})
}

// SendTx is Send within an existing operation transaction. Exported for
// marketplace settlement.
func (svc *Service) SendTx(tx *gorm.DB, b *event.Batch, caller int64, collectionID, nftID uint64, to Target) error {
	n, err := Get(tx, collectionID, nftID)
	if err != nil {
		return err
	}
	if n.RootOwner != caller {
		return errs.ErrNoPermission
	}
	if n.Pending {
		return errs.ErrNoPermission
	}
	if n.Locked {
		return errs.ErrNftIsLocked
	}
	if n.Equipped {
		return errs.ErrCannotSendEquippedItem
	}
	if !n.Transferable {
		return errs.ErrNonTransferable
	}

	var newRoot int64
	pending := false
	switch to.Kind {
	case model.OwnerAccount:
		newRoot = to.AccountID
	case model.OwnerNft:
		if to.CollectionID == collectionID && to.NftID == nftID {
			return errs.ErrCannotSendToDescendentOrSelf
		}
		dest, err := Get(tx, to.CollectionID, to.NftID)
		if err != nil {
			return err
		}
		// The destination must not live underneath the NFT being sent.
		descendant, err := svc.isDescendant(tx, collectionID, nftID, to.CollectionID, to.NftID)
		if err != nil {
			return err
		}
		if descendant {
			return errs.ErrCannotSendToDescendentOrSelf
		}
		newRoot = dest.RootOwner
		pending = newRoot != caller
	default:
		return errs.ErrTokenDoesNotExist
	}

	// Detach from the old parent's children set.
	if n.OwnedByNft() {
		if err := tx.Where(
			"parent_collection_id = ? AND parent_nft_id = ? AND child_collection_id = ? AND child_nft_id = ?",
			n.ParentCollectionID, n.ParentNftID, collectionID, nftID).
			Delete(&model.Child{}).Error; err != nil {
			return err
		}
	}

	switch to.Kind {
	case model.OwnerAccount:
		n.OwnerType = model.OwnerAccount
		n.OwnerAccountID = to.AccountID
		n.ParentCollectionID = 0
		n.ParentNftID = 0
	case model.OwnerNft:
		n.OwnerType = model.OwnerNft
		n.OwnerAccountID = 0
		n.ParentCollectionID = to.CollectionID
		n.ParentNftID = to.NftID
		child := &model.Child{
			ParentCollectionID: to.CollectionID,
			ParentNftID:        to.NftID,
			ChildCollectionID:  collectionID,
			ChildNftID:         nftID,
		}
		if err := tx.Create(child).Error; err != nil {
			return err
		}
	}
	n.Pending = pending
	n.RootOwner = newRoot
	if err := tx.Model(&model.Nft{}).
		Where("collection_id = ? AND nft_id = ?", collectionID, nftID).
		Updates(map[string]interface{}{
			"owner_type":           n.OwnerType,
			"owner_account_id":     n.OwnerAccountID,
			"parent_collection_id": n.ParentCollectionID,
			"parent_nft_id":        n.ParentNftID,
			"pending":              n.Pending,
			"root_owner":           n.RootOwner,
		}).Error; err != nil {
		return err
	}
	// The parent pointer already leads to the new root, so the subtree
	// follows it immediately; acceptance only settles the pending flag.
	if err := svc.refreshRootOwner(tx, collectionID, nftID, newRoot); err != nil {
		return err
	}
	b.Emit(model.EvNftSent, map[string]interface{}{
		"collection_id":     collectionID,
		"nft_id":            nftID,
		"from":              caller,
		"to":                to,
		"approval_required": pending,
	})
	return nil
}

// Accept settles a pending transfer. The caller must be the root owner
// and must name the parent they are accepting into.
func (svc *Service) Accept(ctx context.Context, caller int64, collectionID, nftID uint64, expected Target) error {
	return txn.Run(ctx, svc.db, svc.led, svc.rec, func(tx *gorm.DB, b *event.Batch) error {
		n, err := Get(tx, collectionID, nftID)
		if err != nil {
			return err
		}
		if n.RootOwner != caller {
			return errs.ErrCannotAcceptNonOwnedNft
		}
		if !ownerMatches(n, expected) {
			return errs.ErrCannotAcceptToNewOwner
		}
		if err := tx.Model(&model.Nft{}).
			Where("collection_id = ? AND nft_id = ?", collectionID, nftID).
			Update("pending", false).Error; err != nil {
			return err
		}
		if err := svc.refreshRootOwner(tx, collectionID, nftID, n.RootOwner); err != nil {
			return err
		}
		b.Emit(model.EvNftAccepted, map[string]interface{}{
			"collection_id": collectionID,
			"nft_id":        nftID,
			"root_owner":    caller,
		})
		return nil
	})
}

// Reject refuses a pending transfer, burning the NFT and all its
// descendants.
func (svc *Service) Reject(ctx context.Context, caller int64, collectionID, nftID uint64) error {
	return txn.Run(ctx, svc.db, svc.led, svc.rec, func(tx *gorm.DB, b *event.Batch) error {
		n, err := Get(tx, collectionID, nftID)
		if err != nil {
			return err
		}
		if !n.Pending {
			return errs.ErrCannotRejectNonPendingNft
		}
		if n.RootOwner != caller {
			return errs.ErrCannotRejectNonOwnedNft
		}
		if err := svc.burnSubtree(tx, n); err != nil {
			return err
		}
		b.Emit(model.EvNftRejected, map[string]interface{}{
			"collection_id": collectionID,
			"nft_id":        nftID,
		})
		return nil
	})
}

// Burn removes an NFT and, post-order, every descendant together with
// their resources, properties, priorities and index entries.
func (svc *Service) Burn(ctx context.Context, caller int64, collectionID, nftID uint64) error {
	return txn.Run(ctx, svc.db, svc.led, svc.rec, func(tx *gorm.DB, b *event.Batch) error {
		n, err := Get(tx, collectionID, nftID)
		if err != nil {
			return err
		}
		if n.RootOwner != caller {
			return errs.ErrNoPermission
		}
		if n.Locked {
			return errs.ErrNftIsLocked
		}
		if err := svc.burnSubtree(tx, n); err != nil {
			return err
		}
		b.Emit(model.EvNftBurned, map[string]interface{}{
			"collection_id": collectionID,
			"nft_id":        nftID,
		})
		svc.logger.Info("nft burned",
			zap.Uint64("collection_id", collectionID), zap.Uint64("nft_id", nftID))
		return nil
	})
}

type nodeKey struct {
	collectionID uint64
	nftID        uint64
}

// isDescendant walks the children index from (rootC, rootN) looking for
// (findC, findN), consuming one budget unit per visited node.
func (svc *Service) isDescendant(tx *gorm.DB, rootC, rootN, findC, findN uint64) (bool, error) {
	budget := svc.params.NestingBudget
	stack := []nodeKey{{rootC, rootN}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		var children []model.Child
		if err := tx.Where("parent_collection_id = ? AND parent_nft_id = ?",
			cur.collectionID, cur.nftID).Find(&children).Error; err != nil {
			return false, err
		}
		for _, c := range children {
			if c.ChildCollectionID == findC && c.ChildNftID == findN {
				return true, nil
			}
			if budget == 0 {
				return false, errs.ErrTooManyRecursions
			}
			budget--
			stack = append(stack, nodeKey{c.ChildCollectionID, c.ChildNftID})
		}
	}
	return false, nil
}

// refreshRootOwner rewrites RootOwner across the subtree under
// (collectionID, nftID), consuming one budget unit per visited node.
func (svc *Service) refreshRootOwner(tx *gorm.DB, collectionID, nftID uint64, newRoot int64) error {
	budget := svc.params.NestingBudget
	stack := []nodeKey{{collectionID, nftID}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		var children []model.Child
		if err := tx.Where("parent_collection_id = ? AND parent_nft_id = ?",
			cur.collectionID, cur.nftID).Find(&children).Error; err != nil {
			return err
		}
		for _, c := range children {
			if budget == 0 {
				return errs.ErrTooManyRecursions
			}
			budget--
			if err := tx.Model(&model.Nft{}).
				Where("collection_id = ? AND nft_id = ?", c.ChildCollectionID, c.ChildNftID).
				Update("root_owner", newRoot).Error; err != nil {
				return err
			}
			stack = append(stack, nodeKey{c.ChildCollectionID, c.ChildNftID})
		}
	}
	return nil
}

// burnSubtree removes n and all its descendants post-order. The budget
// counts descendants: a chain of exactly NestingBudget levels below the
// burned NFT succeeds, one more fails the whole operation.
func (svc *Service) burnSubtree(tx *gorm.DB, n *model.Nft) error {
	budget := svc.params.NestingBudget
	order := []nodeKey{{n.CollectionID, n.NftID}}
	for i := 0; i < len(order); i++ {
		cur := order[i]
		var children []model.Child
		if err := tx.Where("parent_collection_id = ? AND parent_nft_id = ?",
			cur.collectionID, cur.nftID).Find(&children).Error; err != nil {
			return err
		}
		for _, c := range children {
			if budget == 0 {
				return errs.ErrTooManyRecursions
			}
			budget--
			order = append(order, nodeKey{c.ChildCollectionID, c.ChildNftID})
		}
	}
	// Detach the top node from its parent's children set before deleting.
	if n.OwnedByNft() {
		if err := tx.Where(
			"parent_collection_id = ? AND parent_nft_id = ? AND child_collection_id = ? AND child_nft_id = ?",
			n.ParentCollectionID, n.ParentNftID, n.CollectionID, n.NftID).
			Delete(&model.Child{}).Error; err != nil {
			return err
		}
	}
	for i := len(order) - 1; i >= 0; i-- {
		if err := svc.burnOne(tx, order[i].collectionID, order[i].nftID); err != nil {
			return err
		}
	}
	return nil
}

// burnOne removes a single NFT row and all its dependent state.
func (svc *Service) burnOne(tx *gorm.DB, collectionID, nftID uint64) error {
	if err := resource.CleanupNftTx(tx, collectionID, nftID); err != nil {
		return err
	}
	if err := tx.Where("collection_id = ? AND nft_scoped = ? AND nft_id = ?",
		collectionID, true, nftID).Delete(&model.Property{}).Error; err != nil {
		return err
	}
	// Children rows where this NFT is the parent; rows where it is the
	// child were removed when its own parent entry was detached.
	if err := tx.Where("parent_collection_id = ? AND parent_nft_id = ?",
		collectionID, nftID).Delete(&model.Child{}).Error; err != nil {
		return err
	}
	// Equip state in either direction.
	if err := tx.Where("equipper_collection_id = ? AND equipper_nft_id = ?",
		collectionID, nftID).Delete(&model.Equipping{}).Error; err != nil {
		return err
	}
	if err := tx.Where("item_collection_id = ? AND item_nft_id = ?",
		collectionID, nftID).Delete(&model.Equipping{}).Error; err != nil {
		return err
	}
	if err := tx.Where("collection_id = ? AND nft_id = ?", collectionID, nftID).
		Delete(&model.Nft{}).Error; err != nil {
		return err
	}
	return tx.Model(&model.Collection{}).Where("id = ?", collectionID).
		Update("nfts_count", gorm.Expr("nfts_count - 1")).Error
}

func ownerMatches(n *model.Nft, t Target) bool {
	switch t.Kind {
	case model.OwnerAccount:
		return n.OwnerType == model.OwnerAccount && n.OwnerAccountID == t.AccountID
	case model.OwnerNft:
		return n.OwnerType == model.OwnerNft &&
			n.ParentCollectionID == t.CollectionID && n.ParentNftID == t.NftID
	}
	return false
}

// Get loads an NFT through tx, mapping missing rows to
// ErrTokenDoesNotExist. Shared by the other engine services.
func Get(tx *gorm.DB, collectionID, nftID uint64) (*model.Nft, error) {
	var n model.Nft
	err := tx.First(&n, "collection_id = ? AND nft_id = ?", collectionID, nftID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrTokenDoesNotExist
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// RootOwnerWalk resolves the root owner by walking parent pointers, for
// callers that want the invariant-checked value rather than the stored
// column. Consumes one budget unit per hop.
func (svc *Service) RootOwnerWalk(tx *gorm.DB, collectionID, nftID uint64) (int64, error) {
	budget := svc.params.NestingBudget
	c, n := collectionID, nftID
	for {
		cur, err := Get(tx, c, n)
		if err != nil {
			return 0, err
		}
		if !cur.OwnedByNft() {
			return cur.OwnerAccountID, nil
		}
		if budget == 0 {
			return 0, errs.ErrTooManyRecursions
		}
		budget--
		c, n = cur.ParentCollectionID, cur.ParentNftID
	}
}
