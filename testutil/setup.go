package testutil

import (
	"testing"

	"github.com/rmrk-team/rmrk-substrate-sub000/cache"
	"github.com/rmrk-team/rmrk-substrate-sub000/config"
	dbadapter "github.com/rmrk-team/rmrk-substrate-sub000/db"
	"github.com/rmrk-team/rmrk-substrate-sub000/ledger"
	"github.com/rmrk-team/rmrk-substrate-sub000/model"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// SetupTestDB creates an in-memory database, runs AutoMigrate and seeds
// the chain state at block 1. No external services required.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := dbadapter.Open(config.DatabaseConfig{Mode: dbadapter.ModeMemory})
	require.NoError(t, err, "SetupTestDB: Open")
	require.NoError(t, model.AutoMigrate(db), "SetupTestDB: AutoMigrate")
	require.NoError(t, ledger.InitChain(db), "SetupTestDB: InitChain")
	return db
}

// SetupTestCache creates the in-process cache and pub/sub (no Redis
// required).
func SetupTestCache(t *testing.T) (cache.Cache, cache.PubSub) {
	t.Helper()
	cfg := cache.Config{} // empty RedisAddr selects the local backends
	c, err := cache.NewCache(cfg)
	require.NoError(t, err, "SetupTestCache: NewCache")
	ps, err := cache.NewPubSub(cfg)
	require.NoError(t, err, "SetupTestCache: NewPubSub")
	return c, ps
}

// SeedAccount inserts an account with the given free balance and returns
// its id.
func SeedAccount(t *testing.T, db *gorm.DB, username string, free int64) int64 {
	t.Helper()
	acc := &model.Account{Username: username, PasswordHash: "x", Status: 1, Free: free}
	require.NoError(t, db.Create(acc).Error, "SeedAccount")
	return acc.ID
}
