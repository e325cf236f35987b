package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/shop-auth/internal/service"
)

func TestToHTTP_Mapping(t *testing.T) {
	wrap := func(err error) error { return fmt.Errorf("service.x: %w", err) }

	tcs := []struct {
		name       string
		in         error
		wantStatus int
	}{
		{"validation_sentinel", wrap(service.ErrValidation), http.StatusBadRequest},
		{"unauthorized", wrap(service.ErrUnauthorized), http.StatusUnauthorized},
		{"conflict", wrap(service.ErrConflict), http.StatusUnauthorized},
		{"not_found", wrap(service.ErrNotFound), http.StatusNotFound},
		{"upstream", wrap(fmt.Errorf("%w: %w", service.ErrUpstream, errors.New("s3 said no"))), http.StatusBadGateway},
		{"upstream_timeout", wrap(service.ErrUpstreamTimeout), http.StatusGatewayTimeout},
		{"canceled", wrap(context.Canceled), StatusClientClosedRequest},
		{"deadline", wrap(context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"internal", wrap(service.ErrInternal), http.StatusInternalServerError},
		{"unknown", errors.New("pq: connection refused"), http.StatusInternalServerError},
		{"nil", nil, http.StatusInternalServerError},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			gotStatus, resp := ToHTTP(tc.in)
			require.Equal(t, tc.wantStatus, gotStatus)
			require.Equal(t, tc.wantStatus, resp.StatusCode)
			require.False(t, resp.Success)
			require.NotEmpty(t, resp.Message)
		})
	}
}

func TestToHTTP_ValidationError_ListsFields(t *testing.T) {
	err := fmt.Errorf("op: %w", &service.ValidationError{Fields: []string{"email", "username"}, Reason: "invalid or missing fields"})

	status, resp := ToHTTP(err)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, []string{"email", "username"}, resp.Errors)
	require.Equal(t, "invalid or missing fields: email, username", resp.Message)
}

func TestToHTTP_InternalDetailsNotLeaked(t *testing.T) {
	_, resp := ToHTTP(fmt.Errorf("%w: %w", service.ErrInternal, errors.New("duplicate key value violates constraint users_pkey")))
	require.NotContains(t, resp.Message, "users_pkey")

	_, resp = ToHTTP(fmt.Errorf("%w: %w", service.ErrUpstream, errors.New("bucket media-secret")))
	require.NotContains(t, resp.Message, "media-secret")
}

func TestWriteError_EnvelopeAndRequestID(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-Id", "rid-1")
	w := httptest.NewRecorder()

	WriteError(w, r, service.ErrUnauthorized)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, float64(401), body["statusCode"])
	require.Equal(t, false, body["success"])
	require.Equal(t, "rid-1", body["requestId"])
	require.NotContains(t, body, "errors")
}

func TestWriteJSON_SuccessEnvelope(t *testing.T) {
	w := httptest.NewRecorder()

	WriteJSON(w, http.StatusOK, map[string]string{"k": "v"}, "ok")

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, float64(200), body["statusCode"])
	require.Equal(t, true, body["success"])
	require.Equal(t, "ok", body["message"])
	require.Equal(t, map[string]any{"k": "v"}, body["data"])
}
