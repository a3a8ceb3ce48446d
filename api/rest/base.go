package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/base"
	mw "github.com/rmrk-team/rmrk-substrate-sub000/middleware"
	"gorm.io/gorm"
)

// BaseHandler handles base and equip REST endpoints.
type BaseHandler struct {
	db  *gorm.DB
	svc *base.Service
}

// NewBaseHandler creates a BaseHandler.
func NewBaseHandler(db *gorm.DB, svc *base.Service) *BaseHandler {
	return &BaseHandler{db: db, svc: svc}
}

type createBaseRequest struct {
	BaseType string           `json:"base_type" binding:"required"`
	Symbol   string           `json:"symbol" binding:"required"`
	Parts    []base.PartInput `json:"parts"`
}

// Create handles POST /api/bases.
func (h *BaseHandler) Create(c *gin.Context) {
	var req createBaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	baseID, err := h.svc.CreateBase(c.Request.Context(), mw.GetAccountID(c), req.BaseType, req.Symbol, req.Parts)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"base_id": baseID})
}

// Parts handles GET /api/bases/:id/parts.
func (h *BaseHandler) Parts(c *gin.Context) {
	id, err := parseUint(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid base id")
		return
	}
	parts, err := h.svc.Parts(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"parts": parts, "count": len(parts)})
}

// Themes handles GET /api/bases/:id/themes.
func (h *BaseHandler) Themes(c *gin.Context) {
	id, err := parseUint(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid base id")
		return
	}
	themes, err := h.svc.Themes(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"themes": themes, "count": len(themes)})
}

// ChangeIssuer handles POST /api/bases/:id/issuer.
func (h *BaseHandler) ChangeIssuer(c *gin.Context) {
	id, err := parseUint(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid base id")
		return
	}
	var req changeIssuerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.svc.ChangeBaseIssuer(c.Request.Context(), mw.GetAccountID(c), id, req.NewIssuer); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type equippableRequest struct {
	Policy string   `json:"policy" binding:"required,oneof=all empty custom"`
	List   []uint64 `json:"list"`
}

// SetEquippable handles PUT /api/bases/:id/slots/:slot/equippable.
func (h *BaseHandler) SetEquippable(c *gin.Context) {
	baseID, slotID, ok := h.slotIDs(c)
	if !ok {
		return
	}
	var req equippableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.svc.Equippable(c.Request.Context(), mw.GetAccountID(c), baseID, slotID, req.Policy, req.List); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// AddEquippable handles POST /api/bases/:id/slots/:slot/equippable/:collection.
func (h *BaseHandler) AddEquippable(c *gin.Context) {
	baseID, slotID, ok := h.slotIDs(c)
	if !ok {
		return
	}
	collectionID, err := parseUint(c.Param("collection"))
	if err != nil {
		badRequest(c, "invalid collection id")
		return
	}
	if err := h.svc.EquippableAdd(c.Request.Context(), mw.GetAccountID(c), baseID, slotID, collectionID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// RemoveEquippable handles DELETE /api/bases/:id/slots/:slot/equippable/:collection.
func (h *BaseHandler) RemoveEquippable(c *gin.Context) {
	baseID, slotID, ok := h.slotIDs(c)
	if !ok {
		return
	}
	collectionID, err := parseUint(c.Param("collection"))
	if err != nil {
		badRequest(c, "invalid collection id")
		return
	}
	if err := h.svc.EquippableRemove(c.Request.Context(), mw.GetAccountID(c), baseID, slotID, collectionID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// AddTheme handles POST /api/bases/:id/themes.
func (h *BaseHandler) AddTheme(c *gin.Context) {
	id, err := parseUint(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid base id")
		return
	}
	var req base.ThemeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.svc.ThemeAdd(c.Request.Context(), mw.GetAccountID(c), id, req); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true})
}

type equipRequest struct {
	ItemCollectionID     uint64 `json:"item_collection_id" binding:"required"`
	ItemNftID            uint64 `json:"item_nft_id" binding:"required"`
	EquipperCollectionID uint64 `json:"equipper_collection_id" binding:"required"`
	EquipperNftID        uint64 `json:"equipper_nft_id" binding:"required"`
	ResourceID           uint64 `json:"resource_id" binding:"required"`
	BaseID               uint64 `json:"base_id" binding:"required"`
	SlotID               uint64 `json:"slot_id" binding:"required"`
}

// Equip handles POST /api/equip. The same call on an occupied slot
// unequips.
func (h *BaseHandler) Equip(c *gin.Context) {
	var req equipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.svc.Equip(c.Request.Context(), mw.GetAccountID(c),
		req.ItemCollectionID, req.ItemNftID,
		req.EquipperCollectionID, req.EquipperNftID,
		req.ResourceID, req.BaseID, req.SlotID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *BaseHandler) slotIDs(c *gin.Context) (uint64, uint64, bool) {
	baseID, err := parseUint(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid base id")
		return 0, 0, false
	}
	slotID, err := parseUint(c.Param("slot"))
	if err != nil {
		badRequest(c, "invalid slot id")
		return 0, 0, false
	}
	return baseID, slotID, true
}
