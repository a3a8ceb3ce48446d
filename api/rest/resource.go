package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/resource"
	mw "github.com/rmrk-team/rmrk-substrate-sub000/middleware"
	"github.com/rmrk-team/rmrk-substrate-sub000/model"
	"gorm.io/gorm"
)

// ResourceHandler handles resource REST endpoints.
type ResourceHandler struct {
	db  *gorm.DB
	svc *resource.Service
}

// NewResourceHandler creates a ResourceHandler.
func NewResourceHandler(db *gorm.DB, svc *resource.Service) *ResourceHandler {
	return &ResourceHandler{db: db, svc: svc}
}

// Add handles POST /api/nfts/:cid/:nid/resources.
func (h *ResourceHandler) Add(c *gin.Context) {
	cid, nid, ok := ids(c)
	if !ok {
		return
	}
	var in resource.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}
	caller := mw.GetAccountID(c)
	ctx := c.Request.Context()
	var err error
	switch in.Kind {
	case model.ResourceBasic:
		err = h.svc.AddBasic(ctx, caller, cid, nid, in)
	case model.ResourceComposable:
		err = h.svc.AddComposable(ctx, caller, cid, nid, in)
	case model.ResourceSlot:
		err = h.svc.AddSlot(ctx, caller, cid, nid, in)
	default:
		badRequest(c, "invalid resource kind")
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"resource_id": in.ResourceID})
}

// List handles GET /api/nfts/:cid/:nid/resources.
func (h *ResourceHandler) List(c *gin.Context) {
	cid, nid, ok := ids(c)
	if !ok {
		return
	}
	var resources []model.Resource
	if err := h.db.WithContext(c.Request.Context()).
		Where("collection_id = ? AND nft_id = ?", cid, nid).
		Order("resource_id").Find(&resources).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"resources": resources, "count": len(resources)})
}

// Accept handles POST /api/nfts/:cid/:nid/resources/:rid/accept.
func (h *ResourceHandler) Accept(c *gin.Context) {
	cid, nid, rid, ok := idsWithResource(c)
	if !ok {
		return
	}
	if err := h.svc.Accept(c.Request.Context(), mw.GetAccountID(c), cid, nid, rid); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Replace handles PUT /api/nfts/:cid/:nid/resources/:rid.
func (h *ResourceHandler) Replace(c *gin.Context) {
	cid, nid, rid, ok := idsWithResource(c)
	if !ok {
		return
	}
	var in resource.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.svc.Replace(c.Request.Context(), mw.GetAccountID(c), cid, nid, rid, in); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Remove handles DELETE /api/nfts/:cid/:nid/resources/:rid.
func (h *ResourceHandler) Remove(c *gin.Context) {
	cid, nid, rid, ok := idsWithResource(c)
	if !ok {
		return
	}
	if err := h.svc.Remove(c.Request.Context(), mw.GetAccountID(c), cid, nid, rid); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// AcceptRemoval handles POST /api/nfts/:cid/:nid/resources/:rid/accept-removal.
func (h *ResourceHandler) AcceptRemoval(c *gin.Context) {
	cid, nid, rid, ok := idsWithResource(c)
	if !ok {
		return
	}
	if err := h.svc.AcceptRemoval(c.Request.Context(), mw.GetAccountID(c), cid, nid, rid); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type setPriorityRequest struct {
	Priorities []uint64 `json:"priorities" binding:"required"`
}

// SetPriority handles PUT /api/nfts/:cid/:nid/priorities.
func (h *ResourceHandler) SetPriority(c *gin.Context) {
	cid, nid, ok := ids(c)
	if !ok {
		return
	}
	var req setPriorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.svc.SetPriority(c.Request.Context(), mw.GetAccountID(c), cid, nid, req.Priorities); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Priorities handles GET /api/nfts/:cid/:nid/priorities.
func (h *ResourceHandler) Priorities(c *gin.Context) {
	cid, nid, ok := ids(c)
	if !ok {
		return
	}
	var rows []model.Priority
	if err := h.db.WithContext(c.Request.Context()).
		Where("collection_id = ? AND nft_id = ?", cid, nid).
		Order("priority").Find(&rows).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"priorities": rows, "count": len(rows)})
}

func ids(c *gin.Context) (uint64, uint64, bool) {
	cid, err := parseUint(c.Param("cid"))
	if err != nil {
		badRequest(c, "invalid collection id")
		return 0, 0, false
	}
	nid, err := parseUint(c.Param("nid"))
	if err != nil {
		badRequest(c, "invalid nft id")
		return 0, 0, false
	}
	return cid, nid, true
}

func idsWithResource(c *gin.Context) (uint64, uint64, uint64, bool) {
	cid, nid, ok := ids(c)
	if !ok {
		return 0, 0, 0, false
	}
	rid, err := parseUint(c.Param("rid"))
	if err != nil {
		badRequest(c, "invalid resource id")
		return 0, 0, 0, false
	}
	return cid, nid, rid, true
}
