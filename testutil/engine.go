package testutil

import (
	"testing"

	"github.com/rmrk-team/rmrk-substrate-sub000/config"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/base"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/collection"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/market"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/nft"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/property"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/resource"
	"github.com/rmrk-team/rmrk-substrate-sub000/event"
	"github.com/rmrk-team/rmrk-substrate-sub000/ledger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Engine bundles a fully wired engine over an in-memory database for
// tests.
type Engine struct {
	DB          *gorm.DB
	Ledger      *ledger.GormLedger
	Params      config.ChainConfig
	Collections *collection.Service
	Nfts        *nft.Service
	Properties  *property.Service
	Resources   *resource.Service
	Bases       *base.Service
	Market      *market.Service
}

// SetupEngine wires every service over a fresh in-memory database.
func SetupEngine(t *testing.T) *Engine {
	t.Helper()
	db := SetupTestDB(t)
	_, ps := SetupTestCache(t)
	logger := zap.NewNop()
	led := ledger.New(logger)
	rec := event.NewRecorder(ps, logger)
	params := config.DefaultChain()

	res := resource.NewService(db, led, rec, params, logger)
	nfts := nft.NewService(db, led, res, rec, params, logger)
	return &Engine{
		DB:          db,
		Ledger:      led,
		Params:      params,
		Collections: collection.NewService(db, led, rec, params, logger),
		Nfts:        nfts,
		Properties:  property.NewService(db, led, rec, params, logger),
		Resources:   res,
		Bases:       base.NewService(db, led, rec, params, logger),
		Market:      market.NewService(db, led, nfts, rec, params, logger),
	}
}

// AdvanceTo moves the block clock to the given height.
func (e *Engine) AdvanceTo(t *testing.T, height uint64) {
	t.Helper()
	cur, err := e.Ledger.CurrentBlock(e.DB)
	if err != nil {
		t.Fatalf("AdvanceTo: %v", err)
	}
	if height < cur {
		t.Fatalf("AdvanceTo: height %d below current %d", height, cur)
	}
	if _, err := e.Ledger.AdvanceBlock(e.DB, height-cur); err != nil {
		t.Fatalf("AdvanceTo: %v", err)
	}
}
