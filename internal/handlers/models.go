package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/The24thDS/karen-backend/internal/assets"
	"github.com/The24thDS/karen-backend/internal/middleware"
	"github.com/The24thDS/karen-backend/internal/services"
)

type ModelHandler struct {
	models services.ModelService
	votes  services.VoteService
	recs   services.RecommendationService
}

func NewModelHandler(models services.ModelService, votes services.VoteService, recs services.RecommendationService) *ModelHandler {
	return &ModelHandler{models: models, votes: votes, recs: recs}
}

// modelRequest references uploads already received into the temporary
// directory by id and original name.
type modelRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Tags        []string          `json:"tags"`
	Metadata    map[string]string `json:"metadata"`
	Models      []assets.FileInfo `json:"models"`
	Images      []assets.FileInfo `json:"images"`
	Gltf        []assets.FileInfo `json:"gltf"`
}

func (h *ModelHandler) List(c *gin.Context) {
	page, err := pagination(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	res, err := h.models.FindAll(c.Request.Context(), page)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, res)
}

func (h *ModelHandler) ListForUser(c *gin.Context) {
	page, err := pagination(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	res, err := h.models.FindAllForUser(c.Request.Context(), c.Param("username"), page)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, res)
}

func (h *ModelHandler) Search(c *gin.Context) {
	page, err := pagination(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	res, err := h.models.Search(c.Request.Context(), c.Query("q"), page)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, res)
}

func (h *ModelHandler) Get(c *gin.Context) {
	res, err := h.models.FindOne(c.Request.Context(), c.Param("slug"))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, res)
}

func (h *ModelHandler) Author(c *gin.Context) {
	res, err := h.models.FindAuthor(c.Request.Context(), c.Param("slug"))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, res)
}

func (h *ModelHandler) Create(c *gin.Context) {
	var req modelRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.models.Create(c.Request.Context(), middleware.Caller(c), services.CreateModelInput(req))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, res)
}

func (h *ModelHandler) Update(c *gin.Context) {
	var req modelRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.models.Update(c.Request.Context(), middleware.Caller(c), c.Param("slug"), services.UpdateModelInput(req))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, res)
}

func (h *ModelHandler) Delete(c *gin.Context) {
	if err := h.models.Remove(c.Request.Context(), middleware.Caller(c), c.Param("slug")); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}

func (h *ModelHandler) IncrementViews(c *gin.Context) {
	views, err := h.models.IncrementViews(c.Request.Context(), c.Param("slug"))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"views": views})
}

func (h *ModelHandler) RemoveAsset(c *gin.Context) {
	err := h.models.RemoveAsset(c.Request.Context(), middleware.Caller(c), c.Param("slug"), c.Param("type"), c.Param("name"))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}

func (h *ModelHandler) Graph(c *gin.Context) {
	res, err := h.models.Graph(c.Request.Context(), c.Param("slug"))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, res)
}

func (h *ModelHandler) Vote(c *gin.Context) {
	var req struct {
		Type string `json:"type"`
	}
	if !bind(c, &req) {
		return
	}
	state, err := h.votes.Vote(c.Request.Context(), middleware.Caller(c), c.Param("slug"), req.Type)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"state": state})
}

func (h *ModelHandler) VoteStatus(c *gin.Context) {
	state, err := h.votes.Status(c.Request.Context(), middleware.Caller(c), c.Param("slug"))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"state": state})
}

func (h *ModelHandler) Rating(c *gin.Context) {
	res, err := h.votes.Rating(c.Request.Context(), c.Param("slug"))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, res)
}

func (h *ModelHandler) Recommendations(c *gin.Context) {
	res, err := h.recs.Recommend(c.Request.Context(), c.Param("slug"))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, res)
}
