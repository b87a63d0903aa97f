package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"cortex.ai/contract-desk/internal/core"
	"cortex.ai/contract-desk/internal/gateway"
	"cortex.ai/contract-desk/internal/session"
	"cortex.ai/contract-desk/internal/store"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// multipartOverhead is the slack allowed above the document size for form framing.
const multipartOverhead = 1 << 20

// Backend reports on the remote service itself rather than on the workflow.
type Backend interface {
	Health(ctx context.Context) (*gateway.Health, error)
	ContractInfo(ctx context.Context, contractID string) (*gateway.ContractInfo, error)
}

type APIHandler struct {
	desk        *core.DeskService
	negotiation *core.NegotiationService
	backend     Backend
	logger      *zap.Logger
}

func NewAPIHandler(desk *core.DeskService, negotiation *core.NegotiationService, backend Backend, logger *zap.Logger) *APIHandler {
	return &APIHandler{desk: desk, negotiation: negotiation, backend: backend, logger: logger}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeError maps workflow errors onto status codes. Messages meant for users are
// passed through; anything else is logged and replaced by a generic message.
func (h *APIHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		coreValidation *core.ValidationError
		gwValidation   *gateway.ValidationError
		selection      *core.SelectionError
		unknownClause  *core.UnknownClauseError
		remote         *gateway.RemoteCallError
		action         *core.ActionError
	)
	switch {
	case errors.As(err, &coreValidation), errors.As(err, &gwValidation), errors.As(err, &selection),
		errors.Is(err, core.ErrEmptyDraft):
		writeDetail(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &unknownClause):
		writeDetail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrNoActiveContract), errors.Is(err, core.ErrNoIdentity), errors.Is(err, core.ErrClauseChanged):
		writeDetail(w, http.StatusConflict, err.Error())
	case errors.As(err, &remote):
		h.logger.Warn("backend call failed", zap.String("path", r.URL.Path), zap.String("diagnostic", remote.Diagnostic()))
		writeDetail(w, http.StatusBadGateway, remote.Error())
	case errors.As(err, &action):
		h.logger.Error("action failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, action.Error())
	default:
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func clauseIndexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		writeDetail(w, http.StatusBadRequest, "Invalid clause index")
		return 0, false
	}
	return index, true
}

func (h *APIHandler) IdentityHandler(w http.ResponseWriter, r *http.Request) {
	id, err := h.desk.Identity()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, id)
}

func (h *APIHandler) OnboardingHandler(w http.ResponseWriter, r *http.Request) {
	var req core.OnboardingForm
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.desk.Onboard(r.Context(), req); err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := h.desk.Identity()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, id)
}

func (h *APIHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.desk.Logout(); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, gateway.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, http.StatusBadRequest, "File size should be less than 10MB.")
			return
		}
		writeDetail(w, http.StatusBadRequest, "Please select a PDF file first.")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Please select a PDF file first.")
		return
	}
	defer file.Close()

	meta, err := h.desk.Upload(r.Context(), &gateway.UploadFile{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Content:     file,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, meta)
}

type HealthResponse struct {
	Status  string          `json:"status"`
	Backend *gateway.Health `json:"backend,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// HealthHandler always answers 200 for the shell itself; the backend's state is reported alongside.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	health, err := h.backend.Health(r.Context())
	if err != nil {
		resp.Error = err.Error()
	} else {
		resp.Backend = health
	}
	writeJSON(w, http.StatusOK, resp)
}

type ContractResponse struct {
	*session.ContractMeta
	UploadTime string `json:"upload_time,omitempty"`
}

func (h *APIHandler) ActiveContractHandler(w http.ResponseWriter, r *http.Request) {
	meta, ok := h.desk.ActiveContract()
	if !ok {
		writeDetail(w, http.StatusNotFound, "No contract uploaded yet")
		return
	}
	resp := ContractResponse{ContractMeta: meta}
	info, err := h.backend.ContractInfo(r.Context(), meta.ContractID)
	if err != nil {
		h.logger.Warn("failed to load contract info", zap.String("contract_id", meta.ContractID), zap.Error(err))
	} else {
		resp.UploadTime = info.UploadTime
	}
	writeJSON(w, http.StatusOK, resp)
}

type AskRequest struct {
	Question string `json:"question"`
}

func (h *APIHandler) AskHandler(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	entry, err := h.desk.Ask(r.Context(), req.Question)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *APIHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := h.desk.History(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *APIHandler) RefreshClausesHandler(w http.ResponseWriter, r *http.Request) {
	clauses, err := h.negotiation.RefreshClauses(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clauses": clauses})
}

func (h *APIHandler) ListClausesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"clauses": h.negotiation.Clauses()})
}

func (h *APIHandler) SelectClauseHandler(w http.ResponseWriter, r *http.Request) {
	index, ok := clauseIndexParam(w, r)
	if !ok {
		return
	}
	if err := h.negotiation.SelectClause(r.Context(), index); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.negotiation.State())
}

func (h *APIHandler) SuggestHandler(w http.ResponseWriter, r *http.Request) {
	index, ok := clauseIndexParam(w, r)
	if !ok {
		return
	}
	// Guidance is optional, so an empty body is accepted.
	var req gateway.Guidance
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeDetail(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	suggestion, err := h.negotiation.Suggest(r.Context(), index, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestion)
}

type DraftRequest struct {
	Text string `json:"text"`
}

func (h *APIHandler) EditDraftHandler(w http.ResponseWriter, r *http.Request) {
	index, ok := clauseIndexParam(w, r)
	if !ok {
		return
	}
	var req DraftRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.negotiation.EditDraft(index, req.Text); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.negotiation.State())
}

func (h *APIHandler) AcceptHandler(w http.ResponseWriter, r *http.Request) {
	index, ok := clauseIndexParam(w, r)
	if !ok {
		return
	}
	override, err := h.negotiation.Accept(r.Context(), index)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, override)
}

func (h *APIHandler) ResetHandler(w http.ResponseWriter, r *http.Request) {
	index, ok := clauseIndexParam(w, r)
	if !ok {
		return
	}
	if err := h.negotiation.Reset(r.Context(), index); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.negotiation.State())
}

type CounterpartyRequest struct {
	Feedback string                  `json:"feedback"`
	Status   core.CounterpartyStatus `json:"status"`
}

func (h *APIHandler) CounterpartyHandler(w http.ResponseWriter, r *http.Request) {
	index, ok := clauseIndexParam(w, r)
	if !ok {
		return
	}
	var req CounterpartyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ev, err := h.negotiation.LogCounterpartyResponse(r.Context(), index, req.Feedback, req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*store.ClauseVersionEvent{"event": ev})
}

func (h *APIHandler) ClauseTimelineHandler(w http.ResponseWriter, r *http.Request) {
	index, ok := clauseIndexParam(w, r)
	if !ok {
		return
	}
	h.writeTimeline(w, r, &index)
}

func (h *APIHandler) ContractTimelineHandler(w http.ResponseWriter, r *http.Request) {
	h.writeTimeline(w, r, nil)
}

func (h *APIHandler) writeTimeline(w http.ResponseWriter, r *http.Request, index *int) {
	events, err := h.negotiation.Timeline(r.Context(), index)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *APIHandler) CompiledDraftHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"text": h.negotiation.CompileDraft()})
}

func (h *APIHandler) StateHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.negotiation.State())
}
