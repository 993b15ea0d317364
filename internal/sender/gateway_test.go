package sender

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/wsp-bulk-sender/internal/campaign"
	"github.com/unclebandit/wsp-bulk-sender/internal/model"
)

func testRequest() model.SendRequest {
	return model.SendRequest{
		Destination:  "584121234567",
		Credentials:  model.Credentials{Token: "tok", PhoneID: "123", WabaID: "waba"},
		TemplateName: "servicio_suspendido",
		Language:     "es",
		Variables:    []string{"Juan", "25.00"},
	}
}

func TestGatewaySenderSuccess(t *testing.T) {
	var got gatewayRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"status":"success","id":"wamid.1"}`))
	}))
	defer srv.Close()

	resp, err := NewGatewaySender(srv.URL).Send(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, &model.SendResponse{OK: true, ApplicationStatus: "success", ID: "wamid.1"}, resp)
	assert.Equal(t, gatewayRequest{
		Token:        "tok",
		PhoneID:      "123",
		Numero:       "584121234567",
		TemplateName: "servicio_suspendido",
		Language:     "es",
		Variables:    []string{"Juan", "25.00"},
	}, got)
}

func TestGatewaySenderOmitsEmptyVariables(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		w.Write([]byte(`{"status":"success"}`))
	}))
	defer srv.Close()

	req := testRequest()
	req.Variables = nil
	_, err := NewGatewaySender(srv.URL).Send(context.Background(), req)
	require.NoError(t, err)
	assert.NotContains(t, raw, "variables")
}

func TestGatewaySenderErrorMessages(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		body    string
		wantOK  bool
		wantMsg string
	}{
		{"meta error wins", http.StatusBadRequest, `{"status":"error","message":"bad","meta_error":"(#131026) undeliverable"}`, false, "(#131026) undeliverable"},
		{"message fallback", http.StatusInternalServerError, `{"status":"error","message":"gateway down"}`, false, "gateway down"},
		{"2xx with application error", http.StatusOK, `{"status":"error","message":"quota"}`, true, "quota"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			resp, err := NewGatewaySender(srv.URL).Send(context.Background(), testRequest())
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, resp.OK)
			assert.Equal(t, tt.wantMsg, resp.ErrorMessage)
			assert.NotEqual(t, model.ApplicationStatusSuccess, resp.ApplicationStatus)
		})
	}
}

func TestGatewaySenderUnreadableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer srv.Close()

	resp, err := NewGatewaySender(srv.URL).Send(context.Background(), testRequest())
	assert.Nil(t, resp)
	assert.ErrorContains(t, err, "502")
}

func TestGatewaySenderTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewGatewaySender(srv.URL, WithTimeout(20*time.Millisecond)).Send(context.Background(), testRequest())
	assert.Error(t, err)
}

func TestGatewayOptions(t *testing.T) {
	g := NewGatewaySender("http://gw", WithHTTPClient(nil), WithTimeout(5*time.Second))
	require.NotNil(t, g.client)
	assert.Equal(t, 5*time.Second, g.client.Timeout)

	shared := &http.Client{Timeout: time.Minute}
	g = NewGatewaySender("http://gw", WithHTTPClient(shared), WithTimeout(time.Second))
	assert.Equal(t, time.Second, g.client.Timeout)
	assert.Equal(t, time.Minute, shared.Timeout)
}

func TestRateLimited(t *testing.T) {
	var calls atomic.Int32
	next := campaign.SenderFunc(func(ctx context.Context, req model.SendRequest) (*model.SendResponse, error) {
		calls.Add(1)
		return &model.SendResponse{OK: true, ApplicationStatus: "success"}, nil
	})

	assert.Nil(t, NewLimiter(0))

	limited := RateLimited(NewLimiter(20), next)
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := limited.Send(context.Background(), testRequest())
		require.NoError(t, err)
	}
	assert.EqualValues(t, 3, calls.Load())
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RateLimited(NewLimiter(0.001), next).Send(ctx, testRequest())
	assert.Error(t, err)
	assert.EqualValues(t, 3, calls.Load())
}
