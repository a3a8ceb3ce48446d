package nft_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/rmrk-team/rmrk-substrate-sub000/core/collection"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/errs"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/nft"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/resource"
	"github.com/rmrk-team/rmrk-substrate-sub000/model"
	"github.com/rmrk-team/rmrk-substrate-sub000/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCollection(t *testing.T, eng *testutil.Engine, issuer int64, id uint64) {
	t.Helper()
	require.NoError(t, eng.Collections.Create(context.Background(), issuer, id, "", "TEST", nil))
}

func mint(t *testing.T, eng *testutil.Engine, caller int64, cid, nid uint64) {
	t.Helper()
	require.NoError(t, eng.Nfts.MintToAccount(context.Background(), caller, caller, cid, nid,
		nft.MintOptions{Transferable: true}))
}

func TestMintToAccount(t *testing.T) {
	eng := testutil.SetupEngine(t)
	ctx := context.Background()
	alice := testutil.SeedAccount(t, eng.DB, "alice", 0)
	bob := testutil.SeedAccount(t, eng.DB, "bob", 0)
	seedCollection(t, eng, alice, 1)

	require.NoError(t, eng.Nfts.MintToAccount(ctx, alice, bob, 1, 1,
		nft.MintOptions{Metadata: "ipfs://nft", Transferable: true}))

	n, err := nft.Get(eng.DB, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, bob, n.RootOwner)
	assert.Equal(t, model.OwnerAccount, n.OwnerType)
	assert.Equal(t, bob, n.OwnerAccountID)
	assert.False(t, n.Pending)

	col, err := collection.Get(eng.DB, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), col.NftsCount)
	assert.Equal(t, uint32(1), col.MintedCount)
}

func TestMint_NonIssuer(t *testing.T) {
	eng := testutil.SetupEngine(t)
	ctx := context.Background()
	alice := testutil.SeedAccount(t, eng.DB, "alice", 0)
	bob := testutil.SeedAccount(t, eng.DB, "bob", 0)
	seedCollection(t, eng, alice, 1)

	err := eng.Nfts.MintToAccount(ctx, bob, bob, 1, 1, nft.MintOptions{Transferable: true})
	assert.ErrorIs(t, err, errs.ErrNoPermission)
}

func TestMint_DuplicateID(t *testing.T) {
	eng := testutil.SetupEngine(t)
	ctx := context.Background()
	alice := testutil.SeedAccount(t, eng.DB, "alice", 0)
	seedCollection(t, eng, alice, 1)
	mint(t, eng, alice, 1, 1)

	err := eng.Nfts.MintToAccount(ctx, alice, alice, 1, 1, nft.MintOptions{Transferable: true})
	assert.ErrorIs(t, err, errs.ErrNftAlreadyExists)
}

func TestMint_MetadataTooLong(t *testing.T) {
	eng := testutil.SetupEngine(t)
	ctx := context.Background()
	alice := testutil.SeedAccount(t, eng.DB, "alice", 0)
	seedCollection(t, eng, alice, 1)

	err := eng.Nfts.MintToAccount(ctx, alice, alice, 1, 1, nft.MintOptions{
		Metadata: strings.Repeat("m", eng.Params.MetadataLimit+1), Transferable: true,
	})
	assert.ErrorIs(t, err, errs.ErrTooLong)
}

func TestMint_TooManyInitialResources(t *testing.T) {
	eng := testutil.SetupEngine(t)
	ctx := context.Background()
	alice := testutil.SeedAccount(t, eng.DB, "alice", 0)
	seedCollection(t, eng, alice, 1)

	inputs := make([]resource.Input, eng.Params.MaxResourcesOnMint+1)
	for i := range inputs {
		inputs[i] = resource.Input{ResourceID: uint64(i + 1), Kind: model.ResourceBasic, Src: "x"}
	}
	err := eng.Nfts.MintToAccount(ctx, alice, alice, 1, 1,
		nft.MintOptions{Transferable: true, Resources: inputs})
	assert.ErrorIs(t, err, errs.ErrTooManyResources)
}

func TestMint_WithInitialResources(t *testing.T) {
	eng := testutil.SetupEngine(t)
	ctx := context.Background()
	alice := testutil.SeedAccount(t, eng.DB, "alice", 0)
	seedCollection(t, eng, alice, 1)

	require.NoError(t, eng.Nfts.MintToAccount(ctx, alice, alice, 1, 1, nft.MintOptions{
		Transferable: true,
		Resources: []resource.Input{
			{ResourceID: 1, Kind: model.ResourceBasic, Src: "a"},
			{ResourceID: 2, Kind: model.ResourceBasic, Src: "b"},
		},
	}))

	var rows []model.Resource
	require.NoError(t, eng.DB.Where("collection_id = ? AND nft_id = ?", 1, 1).Find(&rows).Error)
	require.Len(t, rows, 2)
	// Minted to the issuer, so nothing is pending.
	for _, r := range rows {
		assert.False(t, r.Pending)
	}
}

func TestMint_CapIsMonotonic(t *testing.T) {
	eng := testutil.SetupEngine(t)
	ctx := context.Background()
	alice := testutil.SeedAccount(t, eng.DB, "alice", 0)

	max := uint32(1)
	require.NoError(t, eng.Collections.Create(ctx, alice, 1, "", "CAP", &max))
	mint(t, eng, alice, 1, 1)
	require.NoError(t, eng.Nfts.Burn(ctx, alice, 1, 1))

	// Burning never frees cap slots.
	err := eng.Nfts.MintToAccount(ctx, alice, alice, 1, 2, nft.MintOptions{Transferable: true})
	assert.ErrorIs(t, err, errs.ErrCollectionFullOrLocked)
}

func TestMint_RoyaltyDefaulting(t *testing.T) {
	eng := testutil.SetupEngine(t)
	ctx := context.Background()
	alice := testutil.SeedAccount(t, eng.DB, "alice", 0)
	bob := testutil.SeedAccount(t, eng.DB, "bob", 0)
	seedCollection(t, eng, alice, 1)

	// Amount without recipient falls back to the issuer.
	amt := uint32(25000)
	require.NoError(t, eng.Nfts.MintToAccount(ctx, alice, bob, 1, 1,
		nft.MintOptions{Transferable: true, RoyaltyPerMillion: &amt}))
	n, err := nft.Get(eng.DB, 1, 1)
	require.NoError(t, err)
	require.NotNil(t, n.RoyaltyRecipient)
	assert.Equal(t, alice, *n.RoyaltyRecipient)

	// Recipient without amount is no royalty at all.
	require.NoError(t, eng.Nfts.MintToAccount(ctx, alice, bob, 1, 2,
		nft.MintOptions{Transferable: true, RoyaltyRecipient: &bob}))
	n, err = nft.Get(eng.DB, 1, 2)
	require.NoError(t, err)
	assert.Nil(t, n.RoyaltyRecipient)
	assert.Nil(t, n.RoyaltyPerMillion)
}

func TestMintToNft_OwnParent(t *testing.T) {
	eng := testutil.SetupEngine(t)
	ctx := context.Background()
	alice := testutil.SeedAccount(t, eng.DB, "alice", 0)
	seedCollection(t, eng, alice, 1)
	mint(t, eng, alice, 1, 1)

	require.NoError(t, eng.Nfts.MintToNft(ctx, alice, 1, 1, 1, 2, nft.MintOptions{Transferable: true}))

	child, err := nft.Get(eng.DB, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, alice, child.RootOwner)
	assert.Equal(t, model.OwnerNft, child.OwnerType)
	assert.False(t, child.Pending)

	var cnt int64
	require.NoError(t, eng.DB.Model(&model.Child{}).
		Where("parent_collection_id = ? AND parent_nft_id = ?", 1, 1).Count(&cnt).Error)
	assert.Equal(t, int64(1), cnt)
}

func TestMintToNft_ForeignParentIsPending(t *testing.T) {
	eng := testutil.SetupEngine(t)
	ctx := context.Background()
	alice := testutil.SeedAccount(t, eng.DB, "alice", 0)
	bob := testutil.SeedAccount(t, eng.DB, "bob", 0)
	seedCollection(t, eng, alice, 1)
	require.NoError(t, eng.Nfts.MintToAccount(ctx, alice, bob, 1, 1, nft.MintOptions{Transferable: true}))

	require.NoError(t, eng.Nfts.MintToNft(ctx, alice, 1, 1, 1, 2, nft.MintOptions{Transferable: true}))

	child, err := nft.Get(eng.DB, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, bob, child.RootOwner)
	assert.True(t, child.Pending)

	// Bob settles the pending mint.
	require.NoError(t, eng.Nfts.Accept(ctx, bob, 1, 2, nft.ToNft(1, 1)))
	child, err = nft.Get(eng.DB, 1, 2)
	require.NoError(t, err)
	assert.False(t, child.Pending)
}

func TestSend_ToAccount(t *testing.T) {
	eng := testutil.SetupEngine(t)
	ctx := context.Background()
	alice := testutil.SeedAccount(t, eng.DB, "alice", 0)
	bob := testutil.SeedAccount(t, eng.DB, "bob", 0)
	seedCollection(t, eng, alice, 1)
	mint(t, eng, alice, 1, 1)
	require.NoError(t, eng.Nfts.MintToNft(ctx, alice, 1, 1, 1, 2, nft.MintOptions{Transferable: true}))

	require.NoError(t, eng.Nfts.Send(ctx, alice, 1, 1, nft.ToAccount(bob)))

	n, err := nft.Get(eng.DB, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, bob, n.RootOwner)
	assert.False(t, n.Pending)

	// The nested child follows its parent's root.
	child, err := nft.Get(eng.DB, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, bob, child.RootOwner)
}

func TestSend_OnlyRootOwner(t *testing.T) {
	eng := testutil.SetupEngine(t)
	ctx := context.Background()
	alice := testutil.SeedAccount(t, eng.DB, "alice", 0)
	bob := testutil.SeedAccount(t, eng.DB, "bob", 0)
	seedCollection(t, eng, alice, 1)
	mint(t, eng, alice, 1, 1)

	err := eng.Nfts.Send(ctx, bob, 1, 1, nft.ToAccount(bob))
	assert.ErrorIs(t, err, errs.ErrNoPermission)
}

func TestSend_NonTransferable(t *testing.T) {
	eng := testutil.SetupEngine(t)
	ctx := context.Background()
	alice := testutil.SeedAccount(t, eng.DB, "alice", 0)
	bob := testutil.SeedAccount(t, eng.DB, "bob", 0)
	seedCollection(t, eng, alice, 1)
	require.NoError(t, eng.Nfts.MintToAccount(ctx, alice, alice, 1, 1, nft.MintOptions{Transferable: false}))

	err := eng.Nfts.Send(ctx, alice, 1, 1, nft.ToAccount(bob))
	assert.ErrorIs(t, err, errs.ErrNonTransferable)
}

func TestSend_SelfAndDescendant(t *testing.T) {
	eng := testutil.SetupEngine(t)
	ctx := context.Background()
	alice := testutil.SeedAccount(t, eng.DB, "alice", 0)
	seedCollection(t, eng, alice, 1)
	mint(t, eng, alice, 1, 1)
	require.NoError(t, eng.Nfts.MintToNft(ctx, alice, 1, 1, 1, 2, nft.MintOptions{Transferable: true}))
	require.NoError(t, eng.Nfts.MintToNft(ctx, alice, 1, 2, 1, 3, nft.MintOptions{Transferable: true}))

	err := eng.Nfts.Send(ctx, alice, 1, 1, nft.ToNft(1, 1))
	assert.ErrorIs(t, err, errs.ErrCannotSendToDescendentOrSelf)

	// Grandchild is still a descendant.
	err = eng.Nfts.Send(ctx, alice, 1, 1, nft.ToNft(1, 3))
	assert.ErrorIs(t, err, errs.ErrCannotSendToDescendentOrSelf)
}

func TestSend_ToForeignNftPending(t *testing.T) {
	eng := testutil.SetupEngine(t)
	ctx := context.Background()
	alice := testutil.SeedAccount(t, eng.DB, "alice", 0)
	bob := testutil.SeedAccount(t, eng.DB, "bob", 0)
	seedCollection(t, eng, alice, 1)
	mint(t, eng, alice, 1, 1)
	require.NoError(t, eng.Nfts.MintToAccount(ctx, alice, bob, 1, 2, nft.MintOptions{Transferable: true}))

	require.NoError(t, eng.Nfts.Send(ctx, alice, 1, 1, nft.ToNft(1, 2)))

	n, err := nft.Get(eng.DB, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, bob, n.RootOwner)
	assert.True(t, n.Pending)

	// A pending NFT cannot be forwarded, not even by the new root owner.
	err = eng.Nfts.Send(ctx, bob, 1, 1, nft.ToAccount(alice))
	assert.ErrorIs(t, err, errs.ErrNoPermission)
}

func TestAccept(t *testing.T) {
	eng := testutil.SetupEngine(t)
	ctx := context.Background()
	alice := testutil.SeedAccount(t, eng.DB, "alice", 0)
	bob := testutil.SeedAccount(t, eng.DB, "bob", 0)
	seedCollection(t, eng, alice, 1)
	mint(t, eng, alice, 1, 1)
	require.NoError(t, eng.Nfts.MintToAccount(ctx, alice, bob, 1, 2, nft.MintOptions{Transferable: true}))
	require.NoError(t, eng.Nfts.Send(ctx, alice, 1, 1, nft.ToNft(1, 2)))

	// Only the root owner may accept.
	err := eng.Nfts.Accept(ctx, alice, 1, 1, nft.ToNft(1, 2))
	assert.ErrorIs(t, err, errs.ErrCannotAcceptNonOwnedNft)

	// The named parent must match the actual one.
	err = eng.Nfts.Accept(ctx, bob, 1, 1, nft.ToAccount(bob))
	assert.ErrorIs(t, err, errs.ErrCannotAcceptToNewOwner)

	require.NoError(t, eng.Nfts.Accept(ctx, bob, 1, 1, nft.ToNft(1, 2)))
	n, err := nft.Get(eng.DB, 1, 1)
	require.NoError(t, err)
	assert.False(t, n.Pending)
	assert.Equal(t, bob, n.RootOwner)
}

func TestReject(t *testing.T) {
	eng := testutil.SetupEngine(t)
	ctx := context.Background()
	alice := testutil.SeedAccount(t, eng.DB, "alice", 0)
	bob := testutil.SeedAccount(t, eng.DB, "bob", 0)
	seedCollection(t, eng, alice, 1)
	mint(t, eng, alice, 1, 1)
	require.NoError(t, eng.Nfts.MintToNft(ctx, alice, 1, 1, 1, 2, nft.MintOptions{Transferable: true}))

	// Nothing pending, nothing to reject.
	err := eng.Nfts.Reject(ctx, alice, 1, 2)
	assert.ErrorIs(t, err, errs.ErrCannotRejectNonPendingNft)

	require.NoError(t, eng.Nfts.MintToAccount(ctx, alice, bob, 1, 3, nft.MintOptions{Transferable: true}))
	require.NoError(t, eng.Nfts.Send(ctx, alice, 1, 1, nft.ToNft(1, 3)))

	err = eng.Nfts.Reject(ctx, alice, 1, 1)
	assert.ErrorIs(t, err, errs.ErrCannotRejectNonOwnedNft)

	// Rejection burns the NFT and its whole subtree.
	require.NoError(t, eng.Nfts.Reject(ctx, bob, 1, 1))
	_, err = nft.Get(eng.DB, 1, 1)
	assert.ErrorIs(t, err, errs.ErrTokenDoesNotExist)
	_, err = nft.Get(eng.DB, 1, 2)
	assert.ErrorIs(t, err, errs.ErrTokenDoesNotExist)
}

func TestBurn_Recursive(t *testing.T) {
	eng := testutil.SetupEngine(t)
	ctx := context.Background()
	alice := testutil.SeedAccount(t, eng.DB, "alice", 0)
	seedCollection(t, eng, alice, 1)
	mint(t, eng, alice, 1, 1)
	require.NoError(t, eng.Nfts.MintToNft(ctx, alice, 1, 1, 1, 2, nft.MintOptions{Transferable: true}))
	require.NoError(t, eng.Nfts.MintToNft(ctx, alice, 1, 2, 1, 3, nft.MintOptions{Transferable: true}))

	require.NoError(t, eng.Nfts.Burn(ctx, alice, 1, 1))

	for nid := uint64(1); nid <= 3; nid++ {
		_, err := nft.Get(eng.DB, 1, nid)
		assert.ErrorIs(t, err, errs.ErrTokenDoesNotExist)
	}
	var cnt int64
	require.NoError(t, eng.DB.Model(&model.Child{}).Count(&cnt).Error)
	assert.Equal(t, int64(0), cnt)

	col, err := collection.Get(eng.DB, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), col.NftsCount)
	assert.Equal(t, uint32(3), col.MintedCount)
}

func TestBurn_CleansDependentState(t *testing.T) {
	eng := testutil.SetupEngine(t)
	ctx := context.Background()
	alice := testutil.SeedAccount(t, eng.DB, "alice", 0)
	seedCollection(t, eng, alice, 1)
	require.NoError(t, eng.Nfts.MintToAccount(ctx, alice, alice, 1, 1, nft.MintOptions{
		Transferable: true,
		Resources:    []resource.Input{{ResourceID: 1, Kind: model.ResourceBasic, Src: "a"}},
	}))

	require.NoError(t, eng.Nfts.Burn(ctx, alice, 1, 1))

	var cnt int64
	require.NoError(t, eng.DB.Model(&model.Resource{}).Count(&cnt).Error)
	assert.Equal(t, int64(0), cnt)
}

func TestBurn_BudgetExhausted(t *testing.T) {
	eng := testutil.SetupEngine(t)
	ctx := context.Background()
	alice := testutil.SeedAccount(t, eng.DB, "alice", 0)
	seedCollection(t, eng, alice, 1)
	mint(t, eng, alice, 1, 1)

	// A chain with one descendant more than the nesting budget.
	depth := uint64(eng.Params.NestingBudget) + 1
	for i := uint64(0); i < depth; i++ {
		require.NoError(t, eng.Nfts.MintToNft(ctx, alice, 1, i+1, 1, i+2,
			nft.MintOptions{Transferable: true}),
			fmt.Sprintf("mint depth %d", i))
	}

	err := eng.Nfts.Burn(ctx, alice, 1, 1)
	assert.ErrorIs(t, err, errs.ErrTooManyRecursions)

	// The failed burn left everything in place.
	_, err = nft.Get(eng.DB, 1, depth+1)
	assert.NoError(t, err)

	// Burning from one level down fits the budget.
	require.NoError(t, eng.Nfts.Burn(ctx, alice, 1, 2))
	_, err = nft.Get(eng.DB, 1, 1)
	assert.NoError(t, err)
	_, err = nft.Get(eng.DB, 1, 2)
	assert.ErrorIs(t, err, errs.ErrTokenDoesNotExist)
}

func TestRootOwnerWalk(t *testing.T) {
	eng := testutil.SetupEngine(t)
	ctx := context.Background()
	alice := testutil.SeedAccount(t, eng.DB, "alice", 0)
	seedCollection(t, eng, alice, 1)
	mint(t, eng, alice, 1, 1)
	require.NoError(t, eng.Nfts.MintToNft(ctx, alice, 1, 1, 1, 2, nft.MintOptions{Transferable: true}))
	require.NoError(t, eng.Nfts.MintToNft(ctx, alice, 1, 2, 1, 3, nft.MintOptions{Transferable: true}))

	root, err := eng.Nfts.RootOwnerWalk(eng.DB, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, alice, root)
}

func TestMint_IntoCollectionZero(t *testing.T) {
	eng := testutil.SetupEngine(t)
	alice := testutil.SeedAccount(t, eng.DB, "alice", 0)
	seedCollection(t, eng, alice, 0)

	mint(t, eng, alice, 0, 0)

	n, err := nft.Get(eng.DB, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, alice, n.RootOwner)

	col, err := collection.Get(eng.DB, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), col.NftsCount)
	assert.Equal(t, uint32(1), col.MintedCount)
}

func TestSend_NftIDZeroTouchesOnlyThatToken(t *testing.T) {
	eng := testutil.SetupEngine(t)
	ctx := context.Background()
	alice := testutil.SeedAccount(t, eng.DB, "alice", 0)
	bob := testutil.SeedAccount(t, eng.DB, "bob", 0)
	seedCollection(t, eng, alice, 7)
	mint(t, eng, alice, 7, 0)
	mint(t, eng, alice, 7, 1)

	require.NoError(t, eng.Nfts.Send(ctx, alice, 7, 0, nft.ToAccount(bob)))

	moved, err := nft.Get(eng.DB, 7, 0)
	require.NoError(t, err)
	assert.Equal(t, bob, moved.RootOwner)
	assert.False(t, moved.Pending)

	kept, err := nft.Get(eng.DB, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, alice, kept.RootOwner)
}

func TestAccept_NftIDZero(t *testing.T) {
	eng := testutil.SetupEngine(t)
	ctx := context.Background()
	alice := testutil.SeedAccount(t, eng.DB, "alice", 0)
	bob := testutil.SeedAccount(t, eng.DB, "bob", 0)
	seedCollection(t, eng, alice, 7)
	mint(t, eng, alice, 7, 0)
	require.NoError(t, eng.Nfts.MintToAccount(ctx, alice, bob, 7, 1,
		nft.MintOptions{Transferable: true}))

	require.NoError(t, eng.Nfts.Send(ctx, alice, 7, 0, nft.ToNft(7, 1)))
	n, err := nft.Get(eng.DB, 7, 0)
	require.NoError(t, err)
	require.True(t, n.Pending)

	require.NoError(t, eng.Nfts.Accept(ctx, bob, 7, 0, nft.ToNft(7, 1)))
	n, err = nft.Get(eng.DB, 7, 0)
	require.NoError(t, err)
	assert.False(t, n.Pending)
	assert.Equal(t, bob, n.RootOwner)
}
