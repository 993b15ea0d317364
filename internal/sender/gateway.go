// Package sender holds the HTTP collaborators of a campaign: the message gateway
// and the Graph API template listing.
package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/unclebandit/wsp-bulk-sender/internal/campaign"
	"github.com/unclebandit/wsp-bulk-sender/internal/model"
)

const DefaultTimeout = 30 * time.Second

// gatewayRequest is the body the messaging gateway expects.
type gatewayRequest struct {
	Token        string   `json:"token"`
	PhoneID      string   `json:"phone_id"`
	Numero       string   `json:"numero"`
	TemplateName string   `json:"template_name"`
	Language     string   `json:"language,omitempty"`
	Variables    []string `json:"variables,omitempty"`
}

type gatewayResponse struct {
	Status    string `json:"status"`
	ID        string `json:"id"`
	Message   string `json:"message"`
	MetaError string `json:"meta_error"`
}

// GatewaySender posts one template message per call to the messaging gateway.
type GatewaySender struct {
	url    string
	client *http.Client
}

type GatewayOption func(*GatewaySender)

// WithHTTPClient replaces the default client. A nil client is ignored.
func WithHTTPClient(c *http.Client) GatewayOption {
	return func(g *GatewaySender) {
		if c != nil {
			g.client = c
		}
	}
}

// WithTimeout sets the per-request timeout on a copy of the current client,
// so a client passed to WithHTTPClient is left untouched.
func WithTimeout(d time.Duration) GatewayOption {
	return func(g *GatewaySender) {
		c := *g.client
		c.Timeout = d
		g.client = &c
	}
}

func NewGatewaySender(url string, opts ...GatewayOption) *GatewaySender {
	g := &GatewaySender{
		url:    url,
		client: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Send returns a transport error only when no usable reply came back.
// Non-2xx replies with a decodable body are returned as a response with OK unset.
func (g *GatewaySender) Send(ctx context.Context, req model.SendRequest) (*model.SendResponse, error) {
	body, err := json.Marshal(gatewayRequest{
		Token:        req.Credentials.Token,
		PhoneID:      req.Credentials.PhoneID,
		Numero:       req.Destination,
		TemplateName: req.TemplateName,
		Language:     req.Language,
		Variables:    req.Variables,
	})
	if err != nil {
		return nil, fmt.Errorf("encode gateway request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read gateway response: %w", err)
	}

	var out gatewayResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("gateway returned %d with unreadable body: %w", resp.StatusCode, err)
	}

	errMsg := out.MetaError
	if errMsg == "" {
		errMsg = out.Message
	}
	return &model.SendResponse{
		OK:                resp.StatusCode >= 200 && resp.StatusCode < 300,
		ApplicationStatus: out.Status,
		ID:                out.ID,
		ErrorMessage:      errMsg,
	}, nil
}

// RateLimited waits on lim before every send. A nil limiter returns next unchanged.
func RateLimited(lim *rate.Limiter, next campaign.MessageSender) campaign.MessageSender {
	if lim == nil {
		return next
	}
	return campaign.SenderFunc(func(ctx context.Context, req model.SendRequest) (*model.SendResponse, error) {
		if err := lim.Wait(ctx); err != nil {
			return nil, err
		}
		return next.Send(ctx, req)
	})
}

// NewLimiter builds a limiter allowing perSecond sends with no burst.
// Zero or negative disables throttling.
func NewLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}
