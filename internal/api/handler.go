package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"raffle/internal/audit"
	"raffle/internal/constants"
	"raffle/internal/drawconfig"
	"raffle/internal/export"
	"raffle/internal/logger"
	"raffle/internal/population"
	"raffle/internal/raffle"
	"raffle/internal/sampler"
	"raffle/pkg/errors"
)

// Drawer runs draws; *raffle.Orchestrator satisfies it.
type Drawer interface {
	Run(ctx context.Context, table *population.Table, cfg *drawconfig.DrawConfig, nWinners int, entropy sampler.Entropy) (*raffle.Result, error)
}

type Options struct {
	MaxPopulation  int
	DefaultEventID string
	Epsilon        float64
}

type Handler struct {
	drawer Drawer
	store  audit.Store
	opts   Options
	logger logger.Logger
}

func NewHandler(drawer Drawer, store audit.Store, opts Options, log logger.Logger) *Handler {
	return &Handler{
		drawer: drawer,
		store:  store,
		opts:   opts,
		logger: log,
	}
}

func (h *Handler) HandleError(c *gin.Context, err error) {
	status := errors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	} else {
		h.logger.WarnwCtx(c.Request.Context(), "Request rejected", "error", err, "path", c.Request.URL.Path)
	}

	c.JSON(status, errors.ToErrorResponse(err))
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		v1.POST("/draws", h.CreateDraw)

		audits := v1.Group("/audits")
		{
			audits.GET("", h.ListAudits)
			audits.POST("/verify", h.VerifySnapshot)
		}
	}
}

// CreateDraw godoc
// @Summary      Run a weighted unique draw
// @Description  Filters the population, weights it, draws unique winners and writes an audit record. With format=csv the winners are returned as a CSV table with a UTF-8 BOM.
// @Tags         draws
// @Accept       json
// @Produce      json
// @Produce      text/csv
// @Param        request  body      DrawRequest  true   "Draw configuration, population and winner count"
// @Param        format   query     string       false  "Response format: json (default) or csv"
// @Success      200      {object}  DrawResponse
// @Failure      400      {object}  errors.ErrorResponse
// @Failure      422      {object}  errors.ErrorResponse
// @Failure      500      {object}  errors.ErrorResponse
// @Router       /draws [post]
func (h *Handler) CreateDraw(c *gin.Context) {
	var req DrawRequest
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		h.HandleError(c, errors.ErrValidation.WithCause(err).WithMessage("invalid request body"))
		return
	}

	if h.opts.MaxPopulation > 0 && len(req.Population) > h.opts.MaxPopulation {
		h.HandleError(c, errors.ErrValidation.
			WithMessage("population of %d rows exceeds the limit of %d", len(req.Population), h.opts.MaxPopulation).
			WithDetail("max_population", h.opts.MaxPopulation))
		return
	}

	spec := req.Config
	if spec.EventID == "" {
		spec.EventID = h.opts.DefaultEventID
	}
	if spec.Epsilon == 0 {
		spec.Epsilon = h.opts.Epsilon
	}

	cfg, err := drawconfig.Compile(spec)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	table, err := population.FromRecords(req.Population, cfg.UniqueKey)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	entropy := sampler.Unpredictable()
	if req.Seed != nil {
		entropy = sampler.Seeded(*req.Seed)
	}

	res, err := h.drawer.Run(c.Request.Context(), table, cfg, req.Winners, entropy)
	if err != nil && res == nil {
		h.HandleError(c, err)
		return
	}

	resp := DrawResponse{Result: res}
	if err != nil {
		auditErr := errors.ToErrorResponse(err)
		resp.AuditError = &auditErr
		h.logger.ErrorwCtx(c.Request.Context(), "Draw returned without audit record", "error", err)
	}

	if c.Query("format") == "csv" {
		h.writeCSV(c, table, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) writeCSV(c *gin.Context, table *population.Table, resp DrawResponse) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="winners.csv"`)
	c.Header("X-Draw-ID", resp.DrawID)
	c.Header("X-Audited", strconv.FormatBool(resp.Audited))
	if resp.AuditLocation != "" {
		c.Header("X-Audit-Location", resp.AuditLocation)
	}
	c.Status(http.StatusOK)

	if err := export.WriteCSV(c.Writer, table.UniqueKey, table.Columns, resp.Winners); err != nil {
		h.logger.ErrorwCtx(c.Request.Context(), "Failed to write CSV response", "error", err)
	}
}

// ListAudits godoc
// @Summary      List audit records
// @Description  Lists audit records newest first, optionally for one event
// @Tags         audits
// @Produce      json
// @Param        event_id  query     string  false  "Event identifier"
// @Param        limit     query     int     false  "Maximum records (default 100, max 1000)"
// @Success      200       {object}  AuditListResponse
// @Failure      400       {object}  errors.ErrorResponse
// @Failure      500       {object}  errors.ErrorResponse
// @Router       /audits [get]
func (h *Handler) ListAudits(c *gin.Context) {
	limit := constants.DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.HandleError(c, errors.ErrValidation.WithMessage("limit must be a positive integer"))
			return
		}
		limit = n
	}
	if limit > constants.MaxLimit {
		limit = constants.MaxLimit
	}

	records, err := h.store.List(c.Request.Context(), c.Query("event_id"), limit)
	if err != nil {
		h.HandleError(c, errors.ErrServiceUnavailable.WithCause(err))
		return
	}
	if records == nil {
		records = []audit.Record{}
	}

	c.JSON(http.StatusOK, AuditListResponse{Records: records, Count: len(records)})
}

// VerifySnapshot godoc
// @Summary      Verify a snapshot hash
// @Description  Recomputes the snapshot hash of a candidate id list and compares it with a recorded hash
// @Tags         audits
// @Accept       json
// @Produce      json
// @Param        request  body      VerifyRequest  true  "Recorded hash and candidate ids"
// @Success      200      {object}  VerifyResponse
// @Failure      400      {object}  errors.ErrorResponse
// @Router       /audits/verify [post]
func (h *Handler) VerifySnapshot(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleError(c, errors.ErrValidation.WithCause(err).WithMessage("invalid verify request"))
		return
	}

	actual := audit.SnapshotHash(req.CandidateIDs)
	c.JSON(http.StatusOK, VerifyResponse{
		Valid:    audit.Verify(audit.Record{SnapshotHash: req.SnapshotHash}, req.CandidateIDs) == nil,
		Expected: req.SnapshotHash,
		Actual:   actual,
	})
}
