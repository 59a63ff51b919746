package httpadapter

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/stitchworks/atelier/internal/core/domain"
	"github.com/stitchworks/atelier/internal/core/ports"
	"github.com/stitchworks/atelier/internal/core/usecase"
	"github.com/stitchworks/atelier/internal/observability/metrics"
)

const serviceName = "api"

// maxNotesUploadBytes caps uploaded order-note documents.
const maxNotesUploadBytes = 10 << 20

type Router struct {
	submitUC *usecase.SubmitExtractionUseCase
	jobs     ports.JobReader
	sessions *usecase.SessionManager
	notes    ports.NotesExtractor
	metrics  *metrics.HTTPServerMetrics
}

func NewRouter(
	submitUC *usecase.SubmitExtractionUseCase,
	jobs ports.JobReader,
	sessions *usecase.SessionManager,
	notes ports.NotesExtractor,
	m *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		submitUC: submitUC,
		jobs:     jobs,
		sessions: sessions,
		notes:    notes,
		metrics:  m,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/extractions", rt.submitExtraction)
	mux.HandleFunc("/v1/extractions/", rt.getExtraction)
	mux.HandleFunc("/v1/intake/pdf", rt.intakePDF)
	mux.HandleFunc("/v1/sessions", rt.createSession)
	mux.HandleFunc("/v1/sessions/", rt.sessionSubtree)
	mux.HandleFunc("/v1/research/records", rt.persistResearch)

	handler := http.Handler(mux)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	return withRequestID(logRequests(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) submitExtraction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Kind    string          `json:"kind"`
		Params  json.RawMessage `json:"params"`
		ActorID string          `json:"actor_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	kind, ok := parseRequestKind(req.Kind)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown request kind"})
		return
	}

	job, err := rt.submitUC.Submit(r.Context(), kind, req.Params, req.ActorID)
	if err != nil {
		rt.recordExtraction(string(kind), "rejected")
		writeError(w, err)
		return
	}

	rt.recordExtraction(string(kind), "queued")
	writeJSON(w, http.StatusAccepted, job)
}

func (rt *Router) getExtraction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/extractions/")
	id, wantResult := strings.CutSuffix(rest, "/result")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "job id is required"})
		return
	}

	if wantResult {
		result, err := rt.jobs.GetJobResult(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	job, err := rt.jobs.GetJob(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// intakePDF extracts text from uploaded order notes and queues an
// item-extraction job over that text in one step.
func (rt *Router) intakePDF(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxNotesUploadBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read upload"})
		return
	}

	text, err := rt.notes.ExtractText(r.Context(), bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		writeError(w, err)
		return
	}

	params, err := json.Marshal(map[string]string{"free_text": text})
	if err != nil {
		writeError(w, err)
		return
	}
	job, err := rt.submitUC.Submit(r.Context(), domain.KindItemExtraction, params, r.FormValue("actor_id"))
	if err != nil {
		rt.recordExtraction(string(domain.KindItemExtraction), "rejected")
		writeError(w, err)
		return
	}

	rt.recordExtraction(string(domain.KindItemExtraction), "queued")
	writeJSON(w, http.StatusAccepted, job)
}

func (rt *Router) createSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		JobID string `json:"job_id"`
	}
	if r.Body != nil {
		// An empty body opens a blank session.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
	}

	if req.JobID == "" {
		id := rt.sessions.Create()
		rt.recordSessionItems()
		writeJSON(w, http.StatusCreated, map[string]string{"id": id})
		return
	}

	result, err := rt.jobs.GetJobResult(r.Context(), req.JobID)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := rt.sessions.CreateFromResult(*result)
	if err != nil {
		writeError(w, err)
		return
	}
	rt.recordSessionItems()
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// sessionSubtree dispatches /v1/sessions/{id}[/...] by path segment.
func (rt *Router) sessionSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session id is required"})
		return
	}
	sessionID := segments[0]
	tail := segments[1:]

	switch {
	case len(tail) == 0:
		rt.sessionRoot(w, r, sessionID)
	case tail[0] == "items":
		rt.sessionItems(w, r, sessionID, tail[1:])
	case tail[0] == "extract" && len(tail) == 1:
		rt.sessionExtract(w, r, sessionID)
	case tail[0] == "extract" && len(tail) == 2 && tail[1] == "cancel":
		rt.sessionCancelExtract(w, r, sessionID)
	case tail[0] == "persist" && len(tail) == 1:
		rt.sessionPersist(w, r, sessionID)
	case tail[0] == "export.xlsx" && len(tail) == 1:
		rt.sessionExport(w, r, sessionID)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
}

func (rt *Router) sessionRoot(w http.ResponseWriter, r *http.Request, sessionID string) {
	switch r.Method {
	case http.MethodGet:
		view, err := rt.sessions.View(sessionID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	case http.MethodDelete:
		if err := rt.sessions.Close(sessionID); err != nil {
			writeError(w, err)
			return
		}
		rt.recordSessionItems()
		writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) sessionItems(w http.ResponseWriter, r *http.Request, sessionID string, tail []string) {
	if len(tail) == 0 {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}
		index, err := rt.sessions.AddDefaultItem(sessionID)
		if err != nil {
			writeError(w, err)
			return
		}
		rt.recordSessionItems()
		writeJSON(w, http.StatusCreated, map[string]int{"index": index})
		return
	}

	index, err := strconv.Atoi(tail[0])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "item index must be an integer"})
		return
	}

	switch {
	case len(tail) == 1 && r.Method == http.MethodPatch:
		rt.sessionEditItem(w, r, sessionID, index)
	case len(tail) == 1 && r.Method == http.MethodDelete:
		if err := rt.sessions.RemoveItem(sessionID, index); err != nil {
			writeError(w, err)
			return
		}
		rt.recordSessionItems()
		writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
	case len(tail) == 2 && tail[1] == "category" && r.Method == http.MethodPut:
		rt.sessionChangeCategory(w, r, sessionID, index)
	case len(tail) == 2 && tail[1] == "measurements" && r.Method == http.MethodPatch:
		rt.sessionEditMeasurement(w, r, sessionID, index)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) sessionEditItem(w http.ResponseWriter, r *http.Request, sessionID string, index int) {
	var req struct {
		Field string `json:"field"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if err := rt.sessions.EditItem(sessionID, index, req.Field, req.Value); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (rt *Router) sessionEditMeasurement(w http.ResponseWriter, r *http.Request, sessionID string, index int) {
	var req struct {
		Size  string `json:"size"`
		Field string `json:"field"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if err := rt.sessions.EditMeasurement(sessionID, index, req.Size, req.Field, req.Value); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (rt *Router) sessionChangeCategory(w http.ResponseWriter, r *http.Request, sessionID string, index int) {
	var req struct {
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if err := rt.sessions.ChangeCategory(sessionID, index, req.Category); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (rt *Router) sessionExtract(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		FreeText string `json:"free_text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	flags, err := rt.sessions.Extract(r.Context(), sessionID, req.FreeText)
	if err != nil {
		rt.recordExtraction(string(domain.KindItemExtraction), "failed")
		writeError(w, err)
		return
	}

	rt.recordExtraction(string(domain.KindItemExtraction), "ready")
	rt.recordReviewFlags(string(domain.KindItemExtraction), flags)
	rt.recordSessionItems()
	writeJSON(w, http.StatusOK, map[string]any{"review_flags": flags})
}

func (rt *Router) sessionCancelExtract(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if err := rt.sessions.CancelExtraction(sessionID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (rt *Router) sessionPersist(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		ActorID string `json:"actor_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ids, err := rt.sessions.Persist(r.Context(), sessionID, req.ActorID)
	if err != nil {
		rt.recordPersist("order_item", "rejected")
		writeError(w, err)
		return
	}

	rt.recordPersist("order_item", "stored")
	writeJSON(w, http.StatusCreated, map[string]any{"record_ids": ids})
}

func (rt *Router) sessionExport(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	data, err := rt.sessions.ExportSheet(sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="measurement-sheet.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (rt *Router) persistResearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Record  json.RawMessage     `json:"record"`
		Flags   []domain.ReviewFlag `json:"review_flags"`
		ActorID string              `json:"actor_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	record, err := usecase.DecodeResearchEdit(req.Record)
	if err != nil {
		writeError(w, err)
		return
	}

	id, err := rt.sessions.PersistResearch(r.Context(), record, req.Flags, req.ActorID)
	if err != nil {
		rt.recordPersist("fabric_research", "rejected")
		writeError(w, err)
		return
	}

	rt.recordPersist("fabric_research", "stored")
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (rt *Router) recordExtraction(kind, outcome string) {
	if rt.metrics != nil {
		rt.metrics.RecordExtraction(serviceName, kind, outcome)
	}
}

func (rt *Router) recordReviewFlags(kind string, flags []domain.ReviewFlag) {
	if rt.metrics == nil {
		return
	}
	blocking := 0
	for _, flag := range flags {
		if flag.Blocking {
			blocking++
		}
	}
	rt.metrics.RecordReviewFlags(serviceName, kind, len(flags)-blocking, blocking)
}

func (rt *Router) recordPersist(kind, outcome string) {
	if rt.metrics != nil {
		rt.metrics.RecordPersist(serviceName, kind, outcome)
	}
}

func (rt *Router) recordSessionItems() {
	if rt.metrics != nil {
		rt.metrics.SetSessionItems(rt.sessions.ActiveItems())
	}
}

func parseRequestKind(raw string) (domain.RequestKind, bool) {
	switch domain.RequestKind(raw) {
	case domain.KindItemExtraction, domain.KindFabricResearch, domain.KindCompatibility, domain.KindSuggestion:
		return domain.RequestKind(raw), true
	default:
		return "", false
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
