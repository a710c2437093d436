package httpapp

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cesargomez89/segmentcraft/internal/constants"
	"github.com/cesargomez89/segmentcraft/internal/domain"
	"github.com/cesargomez89/segmentcraft/internal/http/dto"
)

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.Templates.List()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.NewTemplateResponses(templates))
}

func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, err := h.Templates.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.NewTemplateResponse(tmpl))
}

// SaveTemplateConfig applies the body on top of the template's current
// config and stores the result as an override.
func (h *Handler) SaveTemplateConfig(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tmpl, err := h.Templates.Get(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	cfg := tmpl.Config
	if err := decodeJSON(w, r, &cfg); err != nil {
		h.writeError(w, r, err)
		return
	}
	saved, err := h.Templates.SaveConfig(id, cfg)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.Logger.Info("Template config saved", "template_id", id)
	h.writeJSON(w, http.StatusOK, dto.NewTemplateResponse(saved))
}

func (h *Handler) ListChains(w http.ResponseWriter, r *http.Request) {
	if state := r.URL.Query().Get("state"); state != "" {
		req := dto.ChainStateRequest{State: state}
		if errs := req.Validate(); len(errs) > 0 {
			h.writeValidation(w, errs)
			return
		}
		h.writeJSON(w, http.StatusOK, dto.NewChainResponses(h.Chains.ReadManyInState(domain.ChainState(state))))
		return
	}
	chains := h.Chains.ReadMany(queryList(r, "account")...)
	h.writeJSON(w, http.StatusOK, dto.NewChainResponses(chains))
}

func (h *Handler) decodeChainRequest(w http.ResponseWriter, r *http.Request, create bool) (*dto.ChainRequest, bool) {
	var req dto.ChainRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	errs := req.Validate()
	if create {
		errs = req.ValidateCreate()
	}
	if len(errs) > 0 {
		h.writeValidation(w, errs)
		return nil, false
	}
	return &req, true
}

func (h *Handler) CreateChain(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeChainRequest(w, r, true)
	if !ok {
		return
	}
	chain, err := h.Chains.Create(req.ToChain())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, dto.NewChainResponse(chain))
}

// BootstrapChain creates a production chain that starts fabricating at once.
func (h *Handler) BootstrapChain(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeChainRequest(w, r, true)
	if !ok {
		return
	}
	if req.ShipKey == nil || *req.ShipKey == "" {
		h.writeValidation(w, []dto.ValidationError{{Field: "ship_key", Message: "is required"}})
		return
	}
	chain, err := h.Chains.Bootstrap(req.ToChain())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, dto.NewChainResponse(chain))
}

func (h *Handler) GetChain(w http.ResponseWriter, r *http.Request) {
	chain, err := h.Chains.ReadOne(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.NewChainResponse(chain))
}

func (h *Handler) GetChainByShipKey(w http.ResponseWriter, r *http.Request) {
	chain, err := h.Chains.ReadOneByShipKey(chi.URLParam(r, "key"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.NewChainResponse(chain))
}

func (h *Handler) UpdateChain(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeChainRequest(w, r, false)
	if !ok {
		return
	}
	chain, err := h.Chains.Update(chi.URLParam(r, "id"), req.ToChain())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.NewChainResponse(chain))
}

func (h *Handler) UpdateChainState(w http.ResponseWriter, r *http.Request) {
	var req dto.ChainStateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		h.writeValidation(w, errs)
		return
	}
	chain, err := h.Chains.UpdateState(chi.URLParam(r, "id"), domain.ChainState(req.State))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.NewChainResponse(chain))
}

func (h *Handler) ReviveChain(w http.ResponseWriter, r *http.Request) {
	var req dto.ReviveRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	chain, err := h.Chains.Revive(chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, dto.NewChainResponse(chain))
}

func (h *Handler) DeleteChain(w http.ResponseWriter, r *http.Request) {
	if err := h.Chains.Destroy(chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) OverrideMacro(w http.ResponseWriter, r *http.Request) {
	var req dto.MacroOverrideRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		h.writeValidation(w, errs)
		return
	}
	if err := h.Work.OverrideMacro(chi.URLParam(r, "id"), req.ProgramID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) OverrideMemes(w http.ResponseWriter, r *http.Request) {
	var req dto.MemesOverrideRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		h.writeValidation(w, errs)
		return
	}
	if err := h.Work.OverrideMemes(chi.URLParam(r, "id"), req.Memes); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// ListSegments serves one of three views of a chain's segments: an offset
// window (?from=&to=), the segments around an instant (?at=unix seconds),
// or a page of all segments (?page=&page_size=).
func (h *Handler) ListSegments(w http.ResponseWriter, r *http.Request) {
	chainID := chi.URLParam(r, "id")
	if _, err := h.Chains.ReadOne(chainID); err != nil {
		h.writeError(w, r, err)
		return
	}

	switch {
	case hasQuery(r, "from", "to"):
		h.listSegmentWindow(w, r, chainID)
	case hasQuery(r, "at"):
		at, err := queryInt64(r, "at")
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		segs, err := h.Segments.ReadManyFromSecondsUTC(chainID, at)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeJSON(w, http.StatusOK, dto.NewSegmentResponses(segs))
	default:
		h.listSegmentPage(w, r, chainID)
	}
}

func (h *Handler) listSegmentWindow(w http.ResponseWriter, r *http.Request, chainID string) {
	from, err := queryInt(r, "from", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	to, err := queryInt(r, "to", from)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	req := dto.OffsetWindowRequest{From: from, To: to}
	if errs := req.Validate(); len(errs) > 0 {
		h.writeValidation(w, errs)
		return
	}
	segs, err := h.Segments.ReadManyFromToOffset(chainID, req.From, req.To)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.NewSegmentResponses(segs))
}

func (h *Handler) listSegmentPage(w http.ResponseWriter, r *http.Request, chainID string) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	size, err := queryInt(r, "page_size", constants.MaxSegmentsPerPage)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	segs, err := h.Segments.ReadMany(chainID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	p := dto.NewPagination(page, size, len(segs))
	start, end := p.Bounds()
	h.writeJSON(w, http.StatusOK, dto.SegmentPage{
		Segments:   dto.NewSegmentResponses(segs[start:end]),
		Pagination: p,
	})
}

// ListShipSegments serves the segments of the chain with the ship key,
// newest first, or those around an instant when ?at= is given.
func (h *Handler) ListShipSegments(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var (
		segs []*domain.Segment
		err  error
	)
	if hasQuery(r, "at") {
		var at int64
		if at, err = queryInt64(r, "at"); err != nil {
			h.writeError(w, r, err)
			return
		}
		segs, err = h.Segments.ReadManyFromSecondsUTCByShipKey(key, at)
	} else {
		segs, err = h.Segments.ReadManyByShipKey(key)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.NewSegmentResponses(segs))
}

func (h *Handler) GetSegment(w http.ResponseWriter, r *http.Request) {
	seg, err := h.Segments.ReadOne(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.NewSegmentDetailResponse(seg, h.Segments.ReadEntities(seg.ID)))
}

func (h *Handler) ShipSegment(w http.ResponseWriter, r *http.Request) {
	seg, err := h.Segments.Ship(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, dto.NewSegmentResponse(seg))
}
