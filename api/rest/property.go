package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/property"
	mw "github.com/rmrk-team/rmrk-substrate-sub000/middleware"
	"gorm.io/gorm"
)

// PropertyHandler handles property REST endpoints for both collection and
// NFT scopes.
type PropertyHandler struct {
	db  *gorm.DB
	svc *property.Service
}

// NewPropertyHandler creates a PropertyHandler.
func NewPropertyHandler(db *gorm.DB, svc *property.Service) *PropertyHandler {
	return &PropertyHandler{db: db, svc: svc}
}

type setPropertyRequest struct {
	Key   string `json:"key" binding:"required"`
	Value string `json:"value"`
}

// scope derives the property scope from route params: /:cid with an
// optional /:nid segment.
func (h *PropertyHandler) scope(c *gin.Context) (property.Scope, bool) {
	cid, err := parseUint(c.Param("cid"))
	if err != nil {
		badRequest(c, "invalid collection id")
		return property.Scope{}, false
	}
	if nidStr := c.Param("nid"); nidStr != "" {
		nid, err := parseUint(nidStr)
		if err != nil {
			badRequest(c, "invalid nft id")
			return property.Scope{}, false
		}
		return property.ForNft(cid, nid), true
	}
	return property.ForCollection(cid), true
}

// Set handles PUT /api/collections/:cid/properties and
// PUT /api/nfts/:cid/:nid/properties.
func (h *PropertyHandler) Set(c *gin.Context) {
	sc, ok := h.scope(c)
	if !ok {
		return
	}
	var req setPropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.svc.Set(c.Request.Context(), mw.GetAccountID(c), sc, req.Key, req.Value); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Remove handles DELETE .../properties/:key.
func (h *PropertyHandler) Remove(c *gin.Context) {
	sc, ok := h.scope(c)
	if !ok {
		return
	}
	if err := h.svc.Remove(c.Request.Context(), mw.GetAccountID(c), sc, c.Param("key")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// RemoveAll handles DELETE .../properties.
func (h *PropertyHandler) RemoveAll(c *gin.Context) {
	sc, ok := h.scope(c)
	if !ok {
		return
	}
	if err := h.svc.RemoveAll(c.Request.Context(), mw.GetAccountID(c), sc); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// List handles GET .../properties.
func (h *PropertyHandler) List(c *gin.Context) {
	sc, ok := h.scope(c)
	if !ok {
		return
	}
	props, err := h.svc.List(c.Request.Context(), sc)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"properties": props, "count": len(props)})
}
