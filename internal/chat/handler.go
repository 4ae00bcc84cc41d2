package chat

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cfcgs/cfcgs-tracker-backend/pkg/logging"
)

const maxQuestionRunes = 2000

// Handler serves the chatbot HTTP surface.
type Handler struct {
	Orchestrator *Orchestrator
	Logger       logging.Logger
}

func NewHandler(orchestrator *Orchestrator, logger logging.Logger) *Handler {
	return &Handler{Orchestrator: orchestrator, Logger: logger}
}

// RegisterRoutes wires the chatbot endpoints onto the router.
func RegisterRoutes(router gin.IRoutes, handler *Handler) {
	router.POST("/chatbot/query", handler.HandleQuery)
}

type queryRequest struct {
	Question             string         `json:"question"`
	SessionID            string         `json:"sessionId"`
	Page                 int            `json:"page"`
	PageSize             int            `json:"pageSize"`
	ConfirmPagination    bool           `json:"confirmPagination"`
	DisambiguationChoice *choicePayload `json:"disambiguationChoice"`
}

type choicePayload struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

type queryResponse struct {
	Answer                      string                 `json:"answer"`
	NeedsPaginationConfirmation bool                   `json:"needsPaginationConfirmation"`
	Pagination                  *Page                  `json:"pagination,omitempty"`
	Sources                     []Source               `json:"sources,omitempty"`
	Disambiguation              *disambiguationPayload `json:"disambiguation,omitempty"`
}

type disambiguationPayload struct {
	Message string   `json:"message"`
	Options []Option `json:"options"`
	Mode    string   `json:"mode"`
}

func (h *Handler) HandleQuery(c *gin.Context) {
	if h == nil || h.Orchestrator == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "orchestrator unavailable"})
		return
	}

	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}
	if len([]rune(req.Question)) > maxQuestionRunes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question too long"})
		return
	}
	if req.Page < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be at least 1"})
		return
	}
	if req.PageSize < 0 || req.PageSize > h.Orchestrator.pageMax {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("pageSize must be between 1 and %d", h.Orchestrator.pageMax)})
		return
	}
	if req.SessionID == "" {
		req.SessionID = DefaultSessionID
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = h.Orchestrator.pageDefault
	}

	turn := TurnRequest{
		Question:          req.Question,
		SessionID:         req.SessionID,
		Page:              req.Page,
		PageSize:          req.PageSize,
		ConfirmPagination: req.ConfirmPagination,
	}
	if req.DisambiguationChoice != nil {
		turn.DisambiguationChoice = &Option{
			Name: req.DisambiguationChoice.Name,
			Kind: req.DisambiguationChoice.Kind,
		}
	}

	result := h.Orchestrator.Run(c.Request.Context(), turn)

	resp := queryResponse{
		Answer:                      result.Answer,
		NeedsPaginationConfirmation: result.NeedsPaginationConfirmation,
		Pagination:                  result.Pagination,
		Sources:                     result.Sources,
	}
	if result.Disambiguation != nil {
		resp.Disambiguation = &disambiguationPayload{
			Message: result.Disambiguation.Message,
			Options: result.Disambiguation.Options,
			Mode:    string(result.Disambiguation.Mode),
		}
	}
	c.JSON(http.StatusOK, resp)
}
