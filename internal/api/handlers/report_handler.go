package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tuushin/crmsync/backend-go/internal/analytics"
	"github.com/tuushin/crmsync/backend-go/internal/domain"
	"github.com/tuushin/crmsync/backend-go/internal/service"
)

// ReportService is what the sales report endpoint needs; *service.ReportService implements it.
type ReportService interface {
	ListReport(ctx context.Context, q domain.ReportQuery) (*domain.SalesReport, error)
	Detail(ctx context.Context, q domain.ReportQuery) (*domain.SalesDetail, error)
}

var _ ReportService = (*service.ReportService)(nil)

type ReportHandler struct {
	service ReportService
}

func NewReportHandler(service ReportService) *ReportHandler {
	return &ReportHandler{service: service}
}

func (h *ReportHandler) parseQuery(c *gin.Context) (domain.ReportQuery, error) {
	q := domain.ReportQuery{
		Month:    strings.TrimSpace(c.Query("month")),
		Start:    strings.TrimSpace(c.Query("start")),
		End:      strings.TrimSpace(c.Query("end")),
		Search:   strings.TrimSpace(c.Query("search")),
		SalesKey: strings.TrimSpace(c.Query("salesKey")),
		Page:     parsePositiveIntWithDefault(c.Query("page"), 1),
		PageSize: parsePositiveIntWithDefault(c.Query("pageSize"), analytics.DefaultPageSize),
	}

	categories, err := domain.ParseCategoryList(strings.Join(c.QueryArray("categories"), ","))
	if err != nil {
		return q, err
	}
	q.Categories = categories

	filterTypes, err := parseIntList(strings.Join(c.QueryArray("filterTypes"), ","))
	if err != nil {
		return q, err
	}
	q.FilterTypes = filterTypes

	return q, nil
}

// GetSalesReport serves list mode, or detail mode when salesKey is present.
func (h *ReportHandler) GetSalesReport(c *gin.Context) {
	q, err := h.parseQuery(c)
	if err != nil {
		badRequest(c, "invalid request", err.Error())
		return
	}

	if q.SalesKey != "" {
		detail, err := h.service.Detail(c.Request.Context(), q)
		if err != nil {
			respondError(c, err, "failed to fetch sales detail")
			return
		}
		c.JSON(http.StatusOK, detail)
		return
	}

	report, err := h.service.ListReport(c.Request.Context(), q)
	if err != nil {
		respondError(c, err, "failed to fetch sales report")
		return
	}
	c.JSON(http.StatusOK, report)
}

// parseIntList parses a comma-separated list of integers, de-duplicating values.
func parseIntList(value string) ([]int, error) {
	var (
		result []int
		seen   = make(map[int]struct{})
	)
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid filter type %q", part)
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		result = append(result, n)
	}
	return result, nil
}
