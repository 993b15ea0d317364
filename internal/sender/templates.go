package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/unclebandit/wsp-bulk-sender/internal/model"
)

const (
	DefaultGraphURL     = "https://graph.facebook.com"
	DefaultGraphVersion = "v21.0"

	templateFields = "name,status,language,components,category"
	templateLimit  = "100"
)

// TemplateClient lists the message templates registered on a WhatsApp Business account.
type TemplateClient struct {
	baseURL string
	version string
	client  *http.Client
}

func NewTemplateClient(baseURL, version string, client *http.Client) *TemplateClient {
	if baseURL == "" {
		baseURL = DefaultGraphURL
	}
	if version == "" {
		version = DefaultGraphVersion
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &TemplateClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		version: version,
		client:  client,
	}
}

type templateList struct {
	Data  []model.Template `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ListTemplates returns the templates of wabaID whose status is APPROVED.
func (c *TemplateClient) ListTemplates(ctx context.Context, wabaID, token string) ([]model.Template, error) {
	if wabaID == "" || token == "" {
		return nil, fmt.Errorf("list templates: business account id and token are required")
	}

	q := url.Values{}
	q.Set("fields", templateFields)
	q.Set("limit", templateLimit)
	endpoint := fmt.Sprintf("%s/%s/%s/message_templates?%s", c.baseURL, c.version, url.PathEscape(wabaID), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer resp.Body.Close()

	var out templateList
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("list templates: decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return nil, fmt.Errorf("list templates: %s", msg)
	}

	approved := make([]model.Template, 0, len(out.Data))
	for _, t := range out.Data {
		if strings.EqualFold(t.Status, "APPROVED") {
			approved = append(approved, t)
		}
	}
	return approved, nil
}
