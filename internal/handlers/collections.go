package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/The24thDS/karen-backend/internal/middleware"
	"github.com/The24thDS/karen-backend/internal/services"
)

type CollectionHandler struct {
	collections services.CollectionService
}

func NewCollectionHandler(collections services.CollectionService) *CollectionHandler {
	return &CollectionHandler{collections: collections}
}

type collectionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Visibility  string `json:"visibility"`
}

func (h *CollectionHandler) List(c *gin.Context) {
	res, err := h.collections.FindAll(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, res)
}

func (h *CollectionHandler) ListForUser(c *gin.Context) {
	res, err := h.collections.FindAllForUser(c.Request.Context(), middleware.Caller(c), c.Param("username"))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, res)
}

func (h *CollectionHandler) ListForModel(c *gin.Context) {
	res, err := h.collections.FindAllForModel(c.Request.Context(), middleware.Caller(c), c.Param("slug"))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, res)
}

func (h *CollectionHandler) Get(c *gin.Context) {
	res, err := h.collections.FindOne(c.Request.Context(), middleware.Caller(c), c.Param("slug"))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, res)
}

func (h *CollectionHandler) GetWithModels(c *gin.Context) {
	res, err := h.collections.FindOneWithModels(c.Request.Context(), middleware.Caller(c), c.Param("slug"))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, res)
}

func (h *CollectionHandler) Store(c *gin.Context) {
	var req collectionRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.collections.Store(c.Request.Context(), middleware.Caller(c), services.CollectionInput(req))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, res)
}

func (h *CollectionHandler) Update(c *gin.Context) {
	var req collectionRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.collections.Update(c.Request.Context(), middleware.Caller(c), c.Param("slug"), services.CollectionInput(req))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, res)
}

func (h *CollectionHandler) Delete(c *gin.Context) {
	if err := h.collections.Remove(c.Request.Context(), middleware.Caller(c), c.Param("slug")); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}

func (h *CollectionHandler) AddModel(c *gin.Context) {
	err := h.collections.AddModel(c.Request.Context(), middleware.Caller(c), c.Param("slug"), c.Param("model"))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}

func (h *CollectionHandler) RemoveModel(c *gin.Context) {
	err := h.collections.RemoveModel(c.Request.Context(), middleware.Caller(c), c.Param("slug"), c.Param("model"))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}
