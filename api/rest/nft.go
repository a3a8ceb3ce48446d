package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/nft"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/resource"
	mw "github.com/rmrk-team/rmrk-substrate-sub000/middleware"
	"github.com/rmrk-team/rmrk-substrate-sub000/model"
	"gorm.io/gorm"
)

// NftHandler handles NFT REST endpoints.
type NftHandler struct {
	db  *gorm.DB
	svc *nft.Service
}

// NewNftHandler creates an NftHandler.
func NewNftHandler(db *gorm.DB, svc *nft.Service) *NftHandler {
	return &NftHandler{db: db, svc: svc}
}

type mintRequest struct {
	CollectionID      uint64           `json:"collection_id" binding:"required"`
	NftID             uint64           `json:"nft_id" binding:"required"`
	Recipient         *int64           `json:"recipient"`
	ParentCollection  *uint64          `json:"parent_collection_id"`
	ParentNft         *uint64          `json:"parent_nft_id"`
	RoyaltyRecipient  *int64           `json:"royalty_recipient"`
	RoyaltyPerMillion *uint32          `json:"royalty_per_million"`
	Metadata          string           `json:"metadata"`
	Transferable      *bool            `json:"transferable"`
	Resources         []resource.Input `json:"resources"`
}

// Mint handles POST /api/nfts. A parent pair mints into an NFT, a
// recipient mints to an account, neither mints to the caller.
func (h *NftHandler) Mint(c *gin.Context) {
	var req mintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	caller := mw.GetAccountID(c)
	opts := nft.MintOptions{
		RoyaltyRecipient:  req.RoyaltyRecipient,
		RoyaltyPerMillion: req.RoyaltyPerMillion,
		Metadata:          req.Metadata,
		Transferable:      true,
	}
	if req.Transferable != nil {
		opts.Transferable = *req.Transferable
	}
	opts.Resources = req.Resources

	var err error
	switch {
	case req.ParentCollection != nil && req.ParentNft != nil:
		err = h.svc.MintToNft(c.Request.Context(), caller,
			*req.ParentCollection, *req.ParentNft, req.CollectionID, req.NftID, opts)
	case req.Recipient != nil:
		err = h.svc.MintToAccount(c.Request.Context(), caller, *req.Recipient,
			req.CollectionID, req.NftID, opts)
	default:
		err = h.svc.MintToAccount(c.Request.Context(), caller, caller,
			req.CollectionID, req.NftID, opts)
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"collection_id": req.CollectionID, "nft_id": req.NftID})
}

// Get handles GET /api/nfts/:cid/:nid.
func (h *NftHandler) Get(c *gin.Context) {
	cid, nid, ok := ids(c)
	if !ok {
		return
	}
	n, err := nft.Get(h.db.WithContext(c.Request.Context()), cid, nid)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

// Children handles GET /api/nfts/:cid/:nid/children.
func (h *NftHandler) Children(c *gin.Context) {
	cid, nid, ok := ids(c)
	if !ok {
		return
	}
	var children []model.Child
	if err := h.db.WithContext(c.Request.Context()).
		Where("parent_collection_id = ? AND parent_nft_id = ?", cid, nid).
		Find(&children).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"children": children, "count": len(children)})
}

type sendRequest struct {
	Recipient        *int64  `json:"recipient"`
	ParentCollection *uint64 `json:"parent_collection_id"`
	ParentNft        *uint64 `json:"parent_nft_id"`
}

func (r *sendRequest) target() (nft.Target, bool) {
	if r.ParentCollection != nil && r.ParentNft != nil {
		return nft.ToNft(*r.ParentCollection, *r.ParentNft), true
	}
	if r.Recipient != nil {
		return nft.ToAccount(*r.Recipient), true
	}
	return nft.Target{}, false
}

// Send handles POST /api/nfts/:cid/:nid/send.
func (h *NftHandler) Send(c *gin.Context) {
	cid, nid, ok := ids(c)
	if !ok {
		return
	}
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	to, ok := req.target()
	if !ok {
		badRequest(c, "recipient or parent nft required")
		return
	}
	if err := h.svc.Send(c.Request.Context(), mw.GetAccountID(c), cid, nid, to); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Accept handles POST /api/nfts/:cid/:nid/accept.
func (h *NftHandler) Accept(c *gin.Context) {
	cid, nid, ok := ids(c)
	if !ok {
		return
	}
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	expected, ok := req.target()
	if !ok {
		badRequest(c, "recipient or parent nft required")
		return
	}
	if err := h.svc.Accept(c.Request.Context(), mw.GetAccountID(c), cid, nid, expected); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Reject handles POST /api/nfts/:cid/:nid/reject.
func (h *NftHandler) Reject(c *gin.Context) {
	cid, nid, ok := ids(c)
	if !ok {
		return
	}
	if err := h.svc.Reject(c.Request.Context(), mw.GetAccountID(c), cid, nid); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Burn handles DELETE /api/nfts/:cid/:nid.
func (h *NftHandler) Burn(c *gin.Context) {
	cid, nid, ok := ids(c)
	if !ok {
		return
	}
	if err := h.svc.Burn(c.Request.Context(), mw.GetAccountID(c), cid, nid); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

