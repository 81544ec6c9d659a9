package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperr "cryptodata/internal/errors"
	"cryptodata/internal/extract"
	"cryptodata/internal/logging"
	"cryptodata/internal/quality"
	"cryptodata/internal/repair"
	"cryptodata/internal/request"
	"cryptodata/internal/schema"
	"cryptodata/internal/table"
)

// SeriesHandler serves extraction requests
type SeriesHandler struct {
	pipeline *extract.Pipeline
	defaults request.Defaults
	log      *logging.Logger
}

// NewSeriesHandler creates the series handler
func NewSeriesHandler(pipeline *extract.Pipeline, defaults request.Defaults, log *logging.Logger) *SeriesHandler {
	return &SeriesHandler{pipeline: pipeline, defaults: defaults, log: log}
}

// seriesResponse flattens a result for transport; rows carry the per-cell
// source map for auditing
type seriesResponse struct {
	RunID       string                `json:"run_id"`
	GeneratedAt string                `json:"generated_at"`
	Fields      []schema.Field        `json:"fields"`
	Rows        []*table.Row          `json:"rows"`
	Defects     quality.Report        `json:"defects"`
	Repairs     []repair.ActionRecord `json:"repairs"`
	Summary     quality.Summary       `json:"summary"`
	Unresolved  []extract.CoverageGap `json:"unresolved,omitempty"`
	Dropped     []string              `json:"dropped_tickers,omitempty"`
	FromCache   bool                  `json:"from_cache"`
}

// Extract handles POST /api/v1/series
func (h *SeriesHandler) Extract(c *gin.Context) {
	var params request.Params
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, err := request.New(params, h.defaults)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := h.pipeline.Run(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, seriesResponse{
		RunID:       result.RunID.String(),
		GeneratedAt: result.GeneratedAt.Format("2006-01-02T15:04:05Z07:00"),
		Fields:      result.Table.Fields(),
		Rows:        result.Table.Rows(),
		Defects:     result.Defects,
		Repairs:     result.Repairs,
		Summary:     result.Summary,
		Unresolved:  result.Unresolved,
		Dropped:     result.Dropped,
		FromCache:   result.FromCache,
	})
}

// CatalogHandler serves the canonical field catalog and provider registry
type CatalogHandler struct {
	registry *extract.Registry
}

// NewCatalogHandler creates the catalog handler
func NewCatalogHandler(registry *extract.Registry) *CatalogHandler {
	return &CatalogHandler{registry: registry}
}

// Fields handles GET /api/v1/catalog/fields with optional cat and search
// filters
func (h *CatalogHandler) Fields(c *gin.Context) {
	if keyword := c.Query("search"); keyword != "" {
		c.JSON(http.StatusOK, gin.H{"fields": fieldMetas(schema.SearchFields(keyword))})
		return
	}
	if raw := c.Query("cat"); raw != "" {
		cat, err := schema.ParseCategory(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"fields": fieldMetas(schema.LegalFields(cat))})
		return
	}
	var all []schema.Field
	for _, cat := range schema.Categories {
		all = append(all, schema.LegalFields(cat)...)
	}
	c.JSON(http.StatusOK, gin.H{"fields": fieldMetas(dedupeFields(all))})
}

// Tickers handles GET /api/v1/catalog/tickers with optional cat and search
// filters
func (h *CatalogHandler) Tickers(c *gin.Context) {
	if keyword := c.Query("search"); keyword != "" {
		c.JSON(http.StatusOK, gin.H{"tickers": schema.SearchTickers(keyword)})
		return
	}
	if raw := c.Query("cat"); raw != "" {
		cat, err := schema.ParseCategory(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"tickers": schema.TickersFor(cat)})
		return
	}
	var all []schema.TickerMeta
	for _, cat := range schema.Categories {
		all = append(all, schema.TickersFor(cat)...)
	}
	c.JSON(http.StatusOK, gin.H{"tickers": dedupeTickers(all)})
}

// Providers handles GET /api/v1/catalog/providers
func (h *CatalogHandler) Providers(c *gin.Context) {
	type providerInfo struct {
		Name        string             `json:"name"`
		Priority    int                `json:"priority"`
		Categories  []schema.Category  `json:"categories"`
		Fields      []schema.Field     `json:"fields"`
		Frequencies []schema.Frequency `json:"frequencies"`
	}
	var providers []providerInfo
	for _, a := range h.registry.All() {
		caps := a.Capabilities()
		providers = append(providers, providerInfo{
			Name:        a.Name(),
			Priority:    caps.Priority,
			Categories:  caps.Categories,
			Fields:      caps.Fields,
			Frequencies: caps.Frequencies,
		})
	}
	c.JSON(http.StatusOK, gin.H{"providers": providers})
}

func fieldMetas(fields []schema.Field) []schema.FieldMeta {
	metas := make([]schema.FieldMeta, 0, len(fields))
	for _, f := range fields {
		if meta, ok := schema.Lookup(f); ok {
			metas = append(metas, meta)
		}
	}
	return metas
}

func dedupeTickers(metas []schema.TickerMeta) []schema.TickerMeta {
	seen := make(map[string]struct{}, len(metas))
	var out []schema.TickerMeta
	for _, m := range metas {
		if _, dup := seen[m.Symbol]; dup {
			continue
		}
		seen[m.Symbol] = struct{}{}
		out = append(out, m)
	}
	return out
}

func dedupeFields(fields []schema.Field) []schema.Field {
	seen := make(map[schema.Field]struct{}, len(fields))
	var out []schema.Field
	for _, f := range fields {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// respondError maps an application error to its HTTP status
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	body := gin.H{"error": err.Error()}
	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		status = appErr.HTTPStatus()
		body["code"] = appErr.Code
	}
	c.JSON(status, body)
}
