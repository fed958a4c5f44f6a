package main

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/validator-cli/internal/model"
)

// stubValidator returns a canned response for any request.
type stubValidator struct{}

func (stubValidator) Validate(ctx context.Context, req model.ValidationRequest) *model.ValidationResponse {
	return &model.ValidationResponse{
		Success:            true,
		PhoneNumber:        req.PhoneNumber,
		CountryCode:        req.CountryCode,
		WhatsAppAvailable:  true,
		ValidationStrategy: model.StrategyImmediate,
		ConfidenceScore:    90,
		Confidence:         model.ConfidenceResult{Classification: "HIGH"},
		RetryMetadata:      model.RetryMetadata{Provider: "whapi", Tried: []string{"whapi"}},
		Reasoning:          "Standard priority, proceeding with validation.",
	}
}

// stubStore implements store.Store with canned provider health.
type stubStore struct {
	health  []model.ProviderHealth
	listErr error
}

func (s *stubStore) GetHistory(ctx context.Context, phoneNumber string) (*model.ValidationHistory, error) {
	return nil, nil
}
func (s *stubStore) UpsertHistory(ctx context.Context, h model.ValidationHistory) error { return nil }
func (s *stubStore) AppendDecision(ctx context.Context, rec model.DecisionRecord) error { return nil }
func (s *stubStore) ListDecisions(ctx context.Context, phoneNumber string, limit int) ([]model.DecisionRecord, error) {
	return nil, nil
}
func (s *stubStore) RecordProviderResult(ctx context.Context, providerName string, success bool, responseTime float64) error {
	return nil
}
func (s *stubStore) GetProviderHealth(ctx context.Context, providerName string) (*model.ProviderHealth, error) {
	return nil, nil
}
func (s *stubStore) ListProviderHealth(ctx context.Context) ([]model.ProviderHealth, error) {
	return s.health, s.listErr
}
func (s *stubStore) Migrate(ctx context.Context) error { return nil }
func (s *stubStore) Close() error                      { return nil }

func newTestServer(t *testing.T, st *stubStore) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(newRouter(stubValidator{}, st, prometheus.NewRegistry()))
	t.Cleanup(srv.Close)
	return srv
}

func TestServe_Health(t *testing.T) {
	srv := newTestServer(t, &stubStore{})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestServe_Validate(t *testing.T) {
	srv := newTestServer(t, &stubStore{})

	resp, err := http.Post(srv.URL+"/api/v1/validate", "application/json",
		strings.NewReader(`{"phone_number":"+5511999998888","country_code":"BR"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body model.ValidationResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, "+5511999998888", body.PhoneNumber)
	assert.Equal(t, model.StrategyImmediate, body.ValidationStrategy)
}

func TestServe_Validate_BadRequest(t *testing.T) {
	srv := newTestServer(t, &stubStore{})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"missing phone number", `{"country_code":"BR"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/v1/validate", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestServe_ValidateBatch(t *testing.T) {
	srv := newTestServer(t, &stubStore{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "numbers.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("phone,country\n+5511999998888,BR\n14155552671,US\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/api/v1/validate/batch", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	// header + two data rows, input order preserved
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "5511999998888")
	assert.Contains(t, lines[2], "14155552671")
}

func TestServe_ValidateBatch_NoFile(t *testing.T) {
	srv := newTestServer(t, &stubStore{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/api/v1/validate/batch", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServe_Providers(t *testing.T) {
	st := &stubStore{health: []model.ProviderHealth{
		{ProviderName: "whapi", SuccessCount: 10, FailureCount: 2, AvgResponseTime: 1.8},
	}}
	srv := newTestServer(t, st)

	resp, err := http.Get(srv.URL + "/api/v1/providers")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Providers []model.ProviderHealth `json:"providers"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Providers, 1)
	assert.Equal(t, "whapi", body.Providers[0].ProviderName)
}

func TestServe_Metrics(t *testing.T) {
	srv := newTestServer(t, &stubStore{})

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
