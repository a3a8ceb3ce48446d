package ledger_test

import (
	"testing"

	"github.com/rmrk-team/rmrk-substrate-sub000/core/errs"
	"github.com/rmrk-team/rmrk-substrate-sub000/ledger"
	"github.com/rmrk-team/rmrk-substrate-sub000/model"
	"github.com/rmrk-team/rmrk-substrate-sub000/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func freeOf(t *testing.T, db *gorm.DB, id int64) int64 {
	t.Helper()
	var acc model.Account
	require.NoError(t, db.First(&acc, "id = ?", id).Error)
	return acc.Free
}

func TestTransferRejectsNegativeAmount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	led := ledger.New(zap.NewNop())
	alice := testutil.SeedAccount(t, db, "alice", 1000)
	bob := testutil.SeedAccount(t, db, "bob", 1000)

	err := led.Transfer(db, alice, bob, -500)
	require.ErrorIs(t, err, errs.ErrInvalidAmount)
	require.EqualValues(t, 1000, freeOf(t, db, alice))
	require.EqualValues(t, 1000, freeOf(t, db, bob))
}

func TestTransferZeroIsNoOp(t *testing.T) {
	db := testutil.SetupTestDB(t)
	led := ledger.New(zap.NewNop())
	alice := testutil.SeedAccount(t, db, "alice", 1000)
	bob := testutil.SeedAccount(t, db, "bob", 1000)

	require.NoError(t, led.Transfer(db, alice, bob, 0))
	require.EqualValues(t, 1000, freeOf(t, db, alice))
	require.EqualValues(t, 1000, freeOf(t, db, bob))
}

func TestTransferMovesFreeBalance(t *testing.T) {
	db := testutil.SetupTestDB(t)
	led := ledger.New(zap.NewNop())
	alice := testutil.SeedAccount(t, db, "alice", 1000)
	bob := testutil.SeedAccount(t, db, "bob", 0)

	require.NoError(t, led.Transfer(db, alice, bob, 400))
	require.EqualValues(t, 600, freeOf(t, db, alice))
	require.EqualValues(t, 400, freeOf(t, db, bob))

	err := led.Transfer(db, alice, bob, 601)
	require.ErrorIs(t, err, errs.ErrInsufficientBalance)
}

func TestReserveRejectsNonPositiveAmount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	led := ledger.New(zap.NewNop())
	alice := testutil.SeedAccount(t, db, "alice", 1000)

	require.ErrorIs(t, led.Reserve(db, alice, -1), errs.ErrInvalidAmount)
	require.ErrorIs(t, led.Reserve(db, alice, 0), errs.ErrInvalidAmount)
	require.ErrorIs(t, led.Unreserve(db, alice, -1), errs.ErrInvalidAmount)
	require.EqualValues(t, 1000, freeOf(t, db, alice))
}

func TestReserveRoundTrip(t *testing.T) {
	db := testutil.SetupTestDB(t)
	led := ledger.New(zap.NewNop())
	alice := testutil.SeedAccount(t, db, "alice", 1000)

	require.NoError(t, led.Reserve(db, alice, 300))
	require.EqualValues(t, 700, freeOf(t, db, alice))
	require.ErrorIs(t, led.Unreserve(db, alice, 301), errs.ErrInsufficientBalance)
	require.NoError(t, led.Unreserve(db, alice, 300))
	require.EqualValues(t, 1000, freeOf(t, db, alice))
}

func TestCreditRejectsNonPositiveAmount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	led := ledger.New(zap.NewNop())
	alice := testutil.SeedAccount(t, db, "alice", 0)

	require.ErrorIs(t, led.Credit(db, alice, 0), errs.ErrInvalidAmount)
	require.ErrorIs(t, led.Credit(db, alice, -10), errs.ErrInvalidAmount)
	require.NoError(t, led.Credit(db, alice, 10))
	require.EqualValues(t, 10, freeOf(t, db, alice))
}
