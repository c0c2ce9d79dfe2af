package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apperrors "presalecli/internal/errors"
	"presalecli/internal/middleware"
	"presalecli/internal/pipeline"
	"presalecli/internal/services"
)

type runCtxKey struct{}

// requestValidator checks AnalysisRequest struct tags. Shared; validator
// instances cache struct metadata and are safe for concurrent use.
var requestValidator = validator.New()

// AnalysisHandler handles analysis run HTTP requests.
type AnalysisHandler struct {
	service      *services.AnalysisService
	logger       *slog.Logger
	errorHandler *apperrors.ErrorHandler
}

// NewAnalysisHandler creates a new analysis handler.
func NewAnalysisHandler(service *services.AnalysisService, logger *slog.Logger) *AnalysisHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &AnalysisHandler{
		service:      service,
		logger:       logger.With(slog.String("handler", "analysis")),
		errorHandler: apperrors.NewErrorHandler(logger, false),
	}
}

// AnalysisRequest is the body of POST /api/v1/analysis. All fields are
// optional; absent fields fall back to the configured defaults.
type AnalysisRequest struct {
	AnalysisDate     string `json:"analysis_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ProjectsFile     string `json:"projects_file,omitempty" validate:"omitempty,filepath"`
	TransactionsFile string `json:"transactions_file,omitempty" validate:"omitempty,filepath"`
}

// Bind implements render.Binder.
func (a *AnalysisRequest) Bind(r *http.Request) error {
	return requestValidator.Struct(a)
}

// RunListResponse is the body of GET /api/v1/analysis.
type RunListResponse struct {
	Runs    []string `json:"runs"`
	Running bool     `json:"running"`
}

// Routes returns a chi router for analysis endpoints.
func (h *AnalysisHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/", h.StartAnalysis)
	r.Get("/", h.ListRuns)
	r.Get("/latest", h.GetLatest)

	r.Route("/{id}", func(r chi.Router) {
		r.Use(h.RunCtx)
		r.Get("/", h.GetRun)
		r.Get("/projects", h.GetProjects)
		r.Get("/districts", h.GetDistricts)
		r.Get("/cities", h.GetCities)
		r.Get("/quarterly", h.GetQuarterly)
		r.Get("/risk", h.GetRisk)
		r.Get("/diagnostics", h.GetDiagnostics)
	})

	return r
}

// RunCtx resolves the {id} URL parameter to a stored run and injects it
// into the request context. Unknown and malformed ids never reach the
// leaf handlers.
func (h *AnalysisHandler) RunCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		res, err := h.service.Get(id)
		if err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), runCtxKey{}, res)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func runFromContext(ctx context.Context) *pipeline.Result {
	res, _ := ctx.Value(runCtxKey{}).(*pipeline.Result)
	return res
}

// StartAnalysis handles POST /api/v1/analysis. The run executes
// synchronously; progress is streamed over the websocket hub while the
// request is in flight, and the response carries the completed summary.
func (h *AnalysisHandler) StartAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetRequestID(ctx)

	h.logger.InfoContext(ctx, "analysis run requested",
		slog.String("request_id", reqID))

	data := &AnalysisRequest{}
	if r.ContentLength != 0 {
		if err := render.Bind(r, data); err != nil {
			h.logger.WarnContext(ctx, "invalid analysis request",
				slog.String("error", err.Error()),
				slog.String("request_id", reqID))

			problem := apperrors.NewProblemDetails(
				http.StatusBadRequest,
				apperrors.TypeValidation,
				"Invalid Analysis Request",
				err.Error(),
				r.URL.Path,
			).WithExtension("trace_id", reqID)
			render.Render(w, r, problem)
			return
		}
	}

	req := services.RunRequest{
		ProjectsFile:     data.ProjectsFile,
		TransactionsFile: data.TransactionsFile,
	}
	if data.AnalysisDate != "" {
		// Format already validated by the datetime tag.
		date, _ := time.Parse("2006-01-02", data.AnalysisDate)
		req.AnalysisDate = &date
	}

	res, err := h.service.Run(ctx, req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	summary := services.Summarize(res)
	h.logger.InfoContext(ctx, "analysis run completed",
		slog.String("run_id", summary.RunID),
		slog.Int("projects", summary.Projects),
		slog.String("request_id", reqID))

	w.Header().Set("Location", r.URL.Path+"/"+summary.RunID)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, summary)
}

// ListRuns handles GET /api/v1/analysis.
func (h *AnalysisHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, RunListResponse{
		Runs:    h.service.StoredRuns(),
		Running: h.service.Running(),
	})
}

// GetLatest handles GET /api/v1/analysis/latest.
func (h *AnalysisHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Latest()
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, res)
}

// GetRun handles GET /api/v1/analysis/{id}.
func (h *AnalysisHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, runFromContext(r.Context()))
}

// GetProjects handles GET /api/v1/analysis/{id}/projects.
func (h *AnalysisHandler) GetProjects(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, runFromContext(r.Context()).Projects)
}

// GetDistricts handles GET /api/v1/analysis/{id}/districts.
func (h *AnalysisHandler) GetDistricts(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, runFromContext(r.Context()).Districts)
}

// GetCities handles GET /api/v1/analysis/{id}/cities.
func (h *AnalysisHandler) GetCities(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, runFromContext(r.Context()).Cities)
}

// GetQuarterly handles GET /api/v1/analysis/{id}/quarterly.
func (h *AnalysisHandler) GetQuarterly(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, runFromContext(r.Context()).Quarterly)
}

// GetRisk handles GET /api/v1/analysis/{id}/risk.
func (h *AnalysisHandler) GetRisk(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, runFromContext(r.Context()).Risk)
}

// GetDiagnostics handles GET /api/v1/analysis/{id}/diagnostics.
func (h *AnalysisHandler) GetDiagnostics(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, runFromContext(r.Context()).Diagnostics)
}
