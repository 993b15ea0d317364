// internal/handler/campaign_handler.go
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unclebandit/wsp-bulk-sender/internal/model"
	"github.com/unclebandit/wsp-bulk-sender/internal/service"
)

// CampaignHandler serves channel lookups, the audit trail and the progress stream
type CampaignHandler struct {
	Service *service.CampaignService
	Logger  *zap.Logger
	// Heartbeat is the idle interval between keep-alive comments on the event stream.
	Heartbeat time.Duration
}

func (h *CampaignHandler) Routes(r chi.Router) {
	r.Get("/channels", h.ListChannelsHandler)
	r.Get("/channels/{id}/templates", h.ListTemplatesHandler)
	r.Post("/channels/{id}/templates/{name}/preview", h.PreviewTemplateHandler)
	r.Get("/campaigns", h.ListRunsHandler)
	r.Get("/campaigns/{id}", h.GetRunHandlerWithStats)
	r.Get("/campaign/events", h.StreamHandler)
}

func (h *CampaignHandler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func respond(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func fail(w http.ResponseWriter, msg string, err error) {
	http.Error(w, msg+": "+err.Error(), service.StatusCode(err))
}

func (h *CampaignHandler) ListChannelsHandler(w http.ResponseWriter, r *http.Request) {
	channels, err := h.Service.ListChannels(r.Context())
	if err != nil {
		fail(w, "failed to fetch channels", err)
		return
	}
	respond(w, map[string]interface{}{"data": channels})
}

type templateView struct {
	model.Template
	Variables []int `json:"variables"`
}

func (h *CampaignHandler) ListTemplatesHandler(w http.ResponseWriter, r *http.Request) {
	templates, err := h.Service.ListTemplates(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, "failed to fetch templates", err)
		return
	}

	views := make([]templateView, len(templates))
	for i := range templates {
		views[i] = templateView{Template: templates[i], Variables: templates[i].VariableIndexes()}
	}
	respond(w, map[string]interface{}{"data": views})
}

type previewRequest struct {
	Variables []string `json:"variables"`
	// Row selects a staged recipient whose variables fill the template.
	Row *int `json:"row"`
}

// PreviewTemplateHandler renders a template with explicit values or a staged recipient's.
func (h *CampaignHandler) PreviewTemplateHandler(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	preview, err := h.Service.PreviewTemplate(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "name"), req.Variables, req.Row)
	if err != nil {
		fail(w, "failed to preview template", err)
		return
	}
	respond(w, preview)
}

// ListRunsHandler returns a paginated list of campaign runs
func (h *CampaignHandler) ListRunsHandler(w http.ResponseWriter, r *http.Request) {
	pageStr := r.URL.Query().Get("page")
	pageSizeStr := r.URL.Query().Get("page_size")
	page := 1
	pageSize := 10

	if pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}
	if pageSizeStr != "" {
		if ps, err := strconv.Atoi(pageSizeStr); err == nil && ps > 0 {
			pageSize = ps
		}
	}

	status := r.URL.Query().Get("status")

	runs, pagination, err := h.Service.ListRuns(r.Context(), page, pageSize, status)
	if err != nil {
		fail(w, "failed to fetch campaigns", err)
		return
	}

	respond(w, map[string]interface{}{
		"data":       runs,
		"pagination": pagination,
	})
}

func (h *CampaignHandler) GetRunHandlerWithStats(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	details, err := h.Service.GetRunDetails(r.Context(), id)
	if err != nil {
		h.logger().Warn("failed to fetch campaign run", zap.String("run_id", id.String()), zap.Error(err))
		fail(w, "failed to fetch campaign", err)
		return
	}
	respond(w, details)
}

// StreamHandler pushes runner events as server-sent events until the client goes away.
func (h *CampaignHandler) StreamHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	eventCh := h.Service.Subscribe()
	defer h.Service.Unsubscribe(eventCh)

	// Send current state first, shaped like GET /campaign
	writeEvent(w, "snapshot", h.Service.View(0))
	flusher.Flush()

	heartbeat := h.Heartbeat
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case event, ok := <-eventCh:
			if !ok {
				return
			}
			writeEvent(w, string(event.Type), event)
			flusher.Flush()

		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, v any) {
	data, _ := json.Marshal(v)
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
}
