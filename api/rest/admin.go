package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rmrk-team/rmrk-substrate-sub000/audit"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/market"
	"github.com/rmrk-team/rmrk-substrate-sub000/ledger"
	mw "github.com/rmrk-team/rmrk-substrate-sub000/middleware"
	"github.com/rmrk-team/rmrk-substrate-sub000/model"
	"github.com/rmrk-team/rmrk-substrate-sub000/scheduler"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AdminHandler handles admin-only REST endpoints.
// Routes should be protected by AdminAuth middleware.
type AdminHandler struct {
	db     *gorm.DB
	led    *ledger.GormLedger
	mkt    *market.Service
	sched  *scheduler.Scheduler
	aud    *audit.Service
	logger *zap.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(db *gorm.DB, led *ledger.GormLedger, mkt *market.Service, sched *scheduler.Scheduler, aud *audit.Service, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{db: db, led: led, mkt: mkt, sched: sched, aud: aud, logger: logger}
}

// record writes the admin action to the audit trail.
func (h *AdminHandler) record(c *gin.Context, action string, req interface{}, opErr error) {
	entry := audit.Entry{
		TraceID: mw.GetTraceID(c),
		Action:  action,
		Request: req,
		IP:      c.ClientIP(),
	}
	if opErr != nil {
		entry.Error = opErr.Error()
	}
	h.aud.Log(entry)
}

// Metrics returns engine health metrics.
// GET /api/admin/metrics
func (h *AdminHandler) Metrics(c *gin.Context) {
	block, err := h.led.CurrentBlock(h.db)
	if err != nil {
		fail(c, err)
		return
	}
	var counts struct {
		Collections int64
		Nfts        int64
		Listings    int64
		Offers      int64
	}
	h.db.Model(&model.Collection{}).Count(&counts.Collections)
	h.db.Model(&model.Nft{}).Count(&counts.Nfts)
	h.db.Model(&model.Listing{}).Count(&counts.Listings)
	h.db.Model(&model.Offer{}).Count(&counts.Offers)
	c.JSON(http.StatusOK, gin.H{
		"block":           block,
		"collections":     counts.Collections,
		"nfts":            counts.Nfts,
		"listings":        counts.Listings,
		"offers":          counts.Offers,
		"scheduler_tasks": h.sched.ListTickers(),
	})
}

type advanceBlockRequest struct {
	Blocks uint64 `json:"blocks"`
}

// AdvanceBlock moves the block clock forward and runs the expiry sweep.
// POST /api/admin/blocks/advance
func (h *AdminHandler) AdvanceBlock(c *gin.Context) {
	var req advanceBlockRequest
	_ = c.ShouldBindJSON(&req)
	if req.Blocks == 0 {
		req.Blocks = 1
	}
	height, err := h.led.AdvanceBlock(h.db, req.Blocks)
	h.record(c, "admin.advance_block", req, err)
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.mkt.SweepExpired(c.Request.Context()); err != nil {
		h.logger.Error("expiry sweep failed", zap.Error(err))
	}
	h.logger.Info("block advanced", zap.Uint64("height", height))
	c.JSON(http.StatusOK, gin.H{"height": height})
}

type creditRequest struct {
	AccountID int64 `json:"account_id" binding:"required"`
	Amount    int64 `json:"amount" binding:"required,gt=0"`
}

// Credit adds free balance to an account (faucet).
// POST /api/admin/credit
func (h *AdminHandler) Credit(c *gin.Context) {
	var req creditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	err := h.led.Credit(h.db, req.AccountID, req.Amount)
	h.record(c, "admin.credit", req, err)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type freezeRequest struct {
	Frozen bool `json:"frozen"`
}

// FreezeToken toggles the ledger-level freeze flag on a token.
// POST /api/admin/tokens/:cid/:nid/freeze
func (h *AdminHandler) FreezeToken(c *gin.Context) {
	cid, nid, ok := ids(c)
	if !ok {
		return
	}
	var req freezeRequest
	_ = c.ShouldBindJSON(&req)
	err := h.led.SetTokenFrozen(h.db, cid, nid, req.Frozen)
	h.record(c, "admin.freeze_token", gin.H{"collection_id": cid, "nft_id": nid, "frozen": req.Frozen}, err)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "frozen": req.Frozen})
}

type marketOwnerRequest struct {
	Owner int64 `json:"owner" binding:"required"`
}

// SetMarketOwner configures the marketplace fee recipient.
// PUT /api/admin/market/owner
func (h *AdminHandler) SetMarketOwner(c *gin.Context) {
	var req marketOwnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	err := h.mkt.SetOwner(c.Request.Context(), req.Owner)
	h.record(c, "admin.set_market_owner", req, err)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// BanAccount bans or unbans an account.
// POST /api/admin/accounts/:id/ban
func (h *AdminHandler) BanAccount(c *gin.Context) {
	accountID, err := parseInt(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid id")
		return
	}
	var req struct {
		Ban bool `json:"ban"`
	}
	_ = c.ShouldBindJSON(&req)

	status := 1
	if req.Ban {
		status = 0
	}
	result := h.db.Model(&model.Account{}).Where("id = ?", accountID).Update("status", status)
	h.record(c, "admin.ban_account", gin.H{"account_id": accountID, "ban": req.Ban}, result.Error)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": status})
}

// Events returns the event log of one operation trace.
// GET /api/admin/events/:trace
func (h *AdminHandler) Events(c *gin.Context) {
	var events []model.Event
	if err := h.db.Where("trace_id = ?", c.Param("trace")).
		Order("seq").Find(&events).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// AdminAuth returns a middleware that checks the X-Admin-Key header.
// WARNING: if adminKey is empty all admin endpoints are disabled (503) so the
// server cannot be accidentally deployed without protection. Set a non-empty
// server.admin_key in config to enable admin routes.
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"error": "admin endpoints disabled: set server.admin_key in config"})
			return
		}
		key := c.GetHeader("X-Admin-Key")
		if key != adminKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
