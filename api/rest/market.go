package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/market"
	mw "github.com/rmrk-team/rmrk-substrate-sub000/middleware"
	"github.com/rmrk-team/rmrk-substrate-sub000/model"
	"gorm.io/gorm"
)

// MarketHandler handles marketplace REST endpoints.
type MarketHandler struct {
	db  *gorm.DB
	svc *market.Service
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(db *gorm.DB, svc *market.Service) *MarketHandler {
	return &MarketHandler{db: db, svc: svc}
}

type listRequest struct {
	Amount  int64   `json:"amount" binding:"required,gt=0"`
	Expires *uint64 `json:"expires"`
}

// List handles POST /api/market/:cid/:nid/list.
func (h *MarketHandler) List(c *gin.Context) {
	cid, nid, ok := ids(c)
	if !ok {
		return
	}
	var req listRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.svc.List(c.Request.Context(), mw.GetAccountID(c), cid, nid, req.Amount, req.Expires); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true})
}

// Unlist handles POST /api/market/:cid/:nid/unlist.
func (h *MarketHandler) Unlist(c *gin.Context) {
	cid, nid, ok := ids(c)
	if !ok {
		return
	}
	if err := h.svc.Unlist(c.Request.Context(), mw.GetAccountID(c), cid, nid); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type buyRequest struct {
	ExpectedAmount *int64 `json:"expected_amount"`
}

// Buy handles POST /api/market/:cid/:nid/buy.
func (h *MarketHandler) Buy(c *gin.Context) {
	cid, nid, ok := ids(c)
	if !ok {
		return
	}
	var req buyRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		badRequest(c, err.Error())
		return
	}
	if err := h.svc.Buy(c.Request.Context(), mw.GetAccountID(c), cid, nid, req.ExpectedAmount); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type offerRequest struct {
	Amount  int64   `json:"amount" binding:"required,gt=0"`
	Expires *uint64 `json:"expires"`
}

// MakeOffer handles POST /api/market/:cid/:nid/offers.
func (h *MarketHandler) MakeOffer(c *gin.Context) {
	cid, nid, ok := ids(c)
	if !ok {
		return
	}
	var req offerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.svc.MakeOffer(c.Request.Context(), mw.GetAccountID(c), cid, nid, req.Amount, req.Expires); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true})
}

// WithdrawOffer handles DELETE /api/market/:cid/:nid/offers/:maker.
func (h *MarketHandler) WithdrawOffer(c *gin.Context) {
	cid, nid, ok := ids(c)
	if !ok {
		return
	}
	maker, err := parseInt(c.Param("maker"))
	if err != nil {
		badRequest(c, "invalid maker id")
		return
	}
	if err := h.svc.WithdrawOffer(c.Request.Context(), mw.GetAccountID(c), cid, nid, maker); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// AcceptOffer handles POST /api/market/:cid/:nid/offers/:maker/accept.
func (h *MarketHandler) AcceptOffer(c *gin.Context) {
	cid, nid, ok := ids(c)
	if !ok {
		return
	}
	maker, err := parseInt(c.Param("maker"))
	if err != nil {
		badRequest(c, "invalid maker id")
		return
	}
	if err := h.svc.AcceptOffer(c.Request.Context(), mw.GetAccountID(c), cid, nid, maker); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Listings handles GET /api/listings.
func (h *MarketHandler) Listings(c *gin.Context) {
	var listings []model.Listing
	q := h.db.WithContext(c.Request.Context()).Order("created_at DESC")
	if seller := c.Query("seller"); seller != "" {
		q = q.Where("listed_by = ?", seller)
	}
	if err := q.Find(&listings).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"listings": listings, "count": len(listings)})
}

// Offers handles GET /api/market/:cid/:nid/offers.
func (h *MarketHandler) Offers(c *gin.Context) {
	cid, nid, ok := ids(c)
	if !ok {
		return
	}
	var offers []model.Offer
	if err := h.db.WithContext(c.Request.Context()).
		Where("collection_id = ? AND nft_id = ?", cid, nid).
		Order("amount DESC").Find(&offers).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"offers": offers, "count": len(offers)})
}
