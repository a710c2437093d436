package httpapp

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cesargomez89/segmentcraft/internal/app"
	"github.com/cesargomez89/segmentcraft/internal/domain"
	"github.com/cesargomez89/segmentcraft/internal/http/dto"
	"github.com/cesargomez89/segmentcraft/internal/logger"
)

type Handler struct {
	Chains    *app.ChainService
	Segments  *app.SegmentService
	Work      *app.CraftWork
	Templates *app.TemplateCatalog
	Logger    *logger.Logger
}

func NewHandler(chains *app.ChainService, segments *app.SegmentService, work *app.CraftWork, templates *app.TemplateCatalog, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Default()
	}
	return &Handler{
		Chains:    chains,
		Segments:  segments,
		Work:      work,
		Templates: templates,
		Logger:    log.WithComponent("http"),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/templates", h.ListTemplates)
		r.Get("/templates/{id}", h.GetTemplate)
		r.Put("/templates/{id}/config", h.SaveTemplateConfig)

		r.Get("/chains", h.ListChains)
		r.Post("/chains", h.CreateChain)
		r.Post("/chains/bootstrap", h.BootstrapChain)
		r.Get("/chains/{id}", h.GetChain)
		r.Patch("/chains/{id}", h.UpdateChain)
		r.Delete("/chains/{id}", h.DeleteChain)
		r.Put("/chains/{id}/state", h.UpdateChainState)
		r.Post("/chains/{id}/revive", h.ReviveChain)
		r.Post("/chains/{id}/overrides/macro", h.OverrideMacro)
		r.Post("/chains/{id}/overrides/memes", h.OverrideMemes)
		r.Get("/chains/{id}/segments", h.ListSegments)

		r.Get("/segments/{id}", h.GetSegment)
		r.Post("/segments/{id}/ship", h.ShipSegment)

		r.Get("/ship/{key}", h.GetChainByShipKey)
		r.Get("/ship/{key}/segments", h.ListShipSegments)
	})
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Error("Failed to encode response", "error", err)
	}
}

// statusOf maps an engine error kind to the HTTP status reported for it.
func statusOf(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindExistence:
		return http.StatusNotFound
	case domain.KindPrivilege:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (h *Handler) writeValidation(w http.ResponseWriter, errs []dto.ValidationError) {
	h.writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:  dto.ToResponse(errs),
		Fields: dto.ToMap(errs),
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
