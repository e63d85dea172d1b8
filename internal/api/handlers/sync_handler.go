package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/tuushin/crmsync/backend-go/internal/domain"
	"github.com/tuushin/crmsync/backend-go/internal/service"
)

// SyncService is what the sync endpoints need; *service.SyncService implements it.
type SyncService interface {
	Sync(ctx context.Context, req domain.SyncRequest) (*domain.SyncBatchResult, error)
	ListLogs(ctx context.Context, limit int) ([]domain.SyncLogView, error)
}

var _ SyncService = (*service.SyncService)(nil)

type syncRequestBody struct {
	Category    string `json:"category" binding:"omitempty,category"`
	BeginDate   string `json:"beginDate" binding:"omitempty,datetime=2006-01-02"`
	EndDate     string `json:"endDate" binding:"omitempty,datetime=2006-01-02"`
	FilterTypes []int  `json:"filterTypes" binding:"omitempty,dive,gte=0"`
}

var registerOnce sync.Once

// RegisterValidators installs the custom binding tags used by the handlers.
func RegisterValidators() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("category", validateCategory)
		}
	})
}

func validateCategory(fl validator.FieldLevel) bool {
	_, err := domain.ExpandCategory(fl.Field().String())
	return err == nil
}

type SyncHandler struct {
	service SyncService
	loc     *time.Location
}

func NewSyncHandler(service SyncService, loc *time.Location) *SyncHandler {
	RegisterValidators()
	if loc == nil {
		loc = time.UTC
	}
	return &SyncHandler{service: service, loc: loc}
}

// TriggerSync runs a sync for one category or ALL. A single run answers with
// its result; several runs answer with {runs, summary}.
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	var body syncRequestBody
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, "invalid request", err.Error())
			return
		}
	}

	req, err := h.toRequest(body)
	if err != nil {
		badRequest(c, "invalid request", err.Error())
		return
	}

	result, err := h.service.Sync(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "sync failed")
		return
	}

	if len(result.Runs) == 1 {
		c.JSON(http.StatusOK, result.Runs[0])
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *SyncHandler) toRequest(body syncRequestBody) (domain.SyncRequest, error) {
	var req domain.SyncRequest

	category := strings.TrimSpace(body.Category)
	if category == "" {
		category = string(domain.CategoryAll)
	}
	categories, err := domain.ExpandCategory(category)
	if err != nil {
		return req, err
	}
	req.Categories = categories
	req.FilterTypes = body.FilterTypes

	if body.BeginDate != "" {
		if req.From, err = time.ParseInLocation(domain.DateLayout, body.BeginDate, h.loc); err != nil {
			return req, err
		}
	}
	if body.EndDate != "" {
		if req.To, err = time.ParseInLocation(domain.DateLayout, body.EndDate, h.loc); err != nil {
			return req, err
		}
	}
	return req, nil
}

// ListLogs returns recent sync runs, newest first.
func (h *SyncHandler) ListLogs(c *gin.Context) {
	limit := parsePositiveIntWithDefault(c.Query("limit"), 20)

	logs, err := h.service.ListLogs(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err, "failed to fetch sync logs")
		return
	}

	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func parsePositiveIntWithDefault(value string, fallback int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && v > 0 {
		return v
	}
	return fallback
}
