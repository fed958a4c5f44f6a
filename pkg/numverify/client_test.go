package numverify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Success(t *testing.T) {
	t.Parallel()

	want := ValidateResponse{
		Valid:               true,
		Number:              "14155552671",
		InternationalFormat: "+14155552671",
		CountryCode:         "US",
		CountryName:         "United States of America",
		Location:            "Novato",
		Carrier:             "AT&T Mobility LLC",
		LineType:            "mobile",
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/validate", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("access_key"))
		assert.Equal(t, "14155552671", r.URL.Query().Get("number"))
		assert.Equal(t, "US", r.URL.Query().Get("country_code"))
		assert.Equal(t, "1", r.URL.Query().Get("format"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(want)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	got, err := client.Validate(context.Background(), "14155552671", "US")

	require.NoError(t, err)
	assert.True(t, got.Valid)
	assert.Equal(t, "+14155552671", got.InternationalFormat)
	assert.Equal(t, "AT&T Mobility LLC", got.Carrier)
	assert.Equal(t, "mobile", got.LineType)
}

func TestValidate_InvalidNumber(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ValidateResponse{Valid: false, Number: "123"})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	got, err := client.Validate(context.Background(), "123", "US")

	require.NoError(t, err)
	assert.False(t, got.Valid)
}

func TestValidate_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.Validate(context.Background(), "14155552671", "US")

	require.Error(t, err)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.Code)
}

func TestValidate_TransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // closed up front to force a connection error

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.Validate(context.Background(), "14155552671", "US")

	require.Error(t, err)
	var se *StatusError
	assert.False(t, errors.As(err, &se))
}
