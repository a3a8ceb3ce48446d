package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/collection"
	mw "github.com/rmrk-team/rmrk-substrate-sub000/middleware"
	"github.com/rmrk-team/rmrk-substrate-sub000/model"
	"gorm.io/gorm"
)

// CollectionHandler handles collection REST endpoints.
type CollectionHandler struct {
	db  *gorm.DB
	svc *collection.Service
}

// NewCollectionHandler creates a CollectionHandler.
func NewCollectionHandler(db *gorm.DB, svc *collection.Service) *CollectionHandler {
	return &CollectionHandler{db: db, svc: svc}
}

type createCollectionRequest struct {
	CollectionID uint64  `json:"collection_id" binding:"required"`
	Metadata     string  `json:"metadata"`
	Symbol       string  `json:"symbol" binding:"required"`
	Max          *uint32 `json:"max"`
}

// Create handles POST /api/collections.
func (h *CollectionHandler) Create(c *gin.Context) {
	var req createCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	caller := mw.GetAccountID(c)
	if err := h.svc.Create(c.Request.Context(), caller, req.CollectionID, req.Metadata, req.Symbol, req.Max); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"collection_id": req.CollectionID})
}

// Get handles GET /api/collections/:id.
func (h *CollectionHandler) Get(c *gin.Context) {
	id, err := parseUint(c.Param("cid"))
	if err != nil {
		badRequest(c, "invalid collection id")
		return
	}
	col, err := collection.Get(h.db.WithContext(c.Request.Context()), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, col)
}

// List handles GET /api/collections.
func (h *CollectionHandler) List(c *gin.Context) {
	var cols []model.Collection
	q := h.db.WithContext(c.Request.Context()).Order("id")
	if issuer := c.Query("issuer"); issuer != "" {
		q = q.Where("issuer = ?", issuer)
	}
	if err := q.Find(&cols).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collections": cols, "count": len(cols)})
}

// Lock handles POST /api/collections/:id/lock.
func (h *CollectionHandler) Lock(c *gin.Context) {
	id, err := parseUint(c.Param("cid"))
	if err != nil {
		badRequest(c, "invalid collection id")
		return
	}
	if err := h.svc.Lock(c.Request.Context(), mw.GetAccountID(c), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Destroy handles DELETE /api/collections/:id.
func (h *CollectionHandler) Destroy(c *gin.Context) {
	id, err := parseUint(c.Param("cid"))
	if err != nil {
		badRequest(c, "invalid collection id")
		return
	}
	if err := h.svc.Destroy(c.Request.Context(), mw.GetAccountID(c), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type changeIssuerRequest struct {
	NewIssuer int64 `json:"new_issuer" binding:"required"`
}

// ChangeIssuer handles POST /api/collections/:id/issuer.
func (h *CollectionHandler) ChangeIssuer(c *gin.Context) {
	id, err := parseUint(c.Param("cid"))
	if err != nil {
		badRequest(c, "invalid collection id")
		return
	}
	var req changeIssuerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.svc.ChangeIssuer(c.Request.Context(), mw.GetAccountID(c), id, req.NewIssuer); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func parseUint(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

func parseInt(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
