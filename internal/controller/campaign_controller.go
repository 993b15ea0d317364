// internal/controller/campaign_controller.go
package controller

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/wsp-bulk-sender/internal/recipients"
	"github.com/unclebandit/wsp-bulk-sender/internal/service"
)

const maxUploadBytes = 10 << 20

type CampaignController struct {
	CampaignService *service.CampaignService
}

// Routes mounts the campaign control endpoints.
func (c *CampaignController) Routes(r chi.Router) {
	r.Get("/campaign", c.GetCampaign)
	r.Get("/campaign/settings", c.LastSettings)
	r.Get("/campaign/template.csv", c.SampleCSV)
	r.Get("/campaign/log.csv", c.ExportLog)
	r.Post("/campaign/recipients", c.UploadRecipients)
	r.Delete("/campaign/recipients", c.ClearRecipients)
	r.Post("/campaign/start", c.StartCampaign)
	r.Post("/campaign/cancel", c.CancelCampaign)
	r.Post("/campaign/reset", c.ResetCampaign)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, service.StatusCode(err), map[string]string{"error": err.Error()})
}

func (c *CampaignController) GetCampaign(w http.ResponseWriter, r *http.Request) {
	rows, _ := strconv.Atoi(r.URL.Query().Get("preview_rows"))
	writeJSON(w, http.StatusOK, c.CampaignService.View(rows))
}

func (c *CampaignController) SampleCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="template_whatsapp.csv"`)
	io.WriteString(w, recipients.SampleCSV)
}

// UploadRecipients accepts the file as a multipart "file" field or as the raw body.
func (c *CampaignController) UploadRecipients(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var src io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "missing file field", http.StatusBadRequest)
			return
		}
		defer file.Close()
		src = file
	}

	rows, _ := strconv.Atoi(r.URL.Query().Get("preview_rows"))
	preview, err := c.CampaignService.StageRecipients(src, rows)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (c *CampaignController) ClearRecipients(w http.ResponseWriter, r *http.Request) {
	if err := c.CampaignService.ClearRecipients(); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *CampaignController) StartCampaign(w http.ResponseWriter, r *http.Request) {
	var body service.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	snap, err := c.CampaignService.StartCampaign(r.Context(), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, service.NewView(*snap))
}

// LastSettings returns the channel, title, template and language of the latest campaign.
func (c *CampaignController) LastSettings(w http.ResponseWriter, r *http.Request) {
	req, err := c.CampaignService.LastStart(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (c *CampaignController) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, service.NewView(c.CampaignService.CancelCampaign()))
}

func (c *CampaignController) ResetCampaign(w http.ResponseWriter, r *http.Request) {
	if err := c.CampaignService.ResetCampaign(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, service.NewView(c.CampaignService.Snapshot()))
}

func (c *CampaignController) ExportLog(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="whatsapp_log_%d.csv"`, time.Now().UnixMilli()))
	if err := c.CampaignService.ExportLog(w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
