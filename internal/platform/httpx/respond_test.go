package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return env
}

func TestRespondErrorUsesCodedPrecondition(t *testing.T) {
	errShort := shared.Precondition("INSUFFICIENT_STOCK", "inventory: insufficient stock")
	rr := httptest.NewRecorder()
	RespondError(rr, fmt.Errorf("%w: product 7 needs 3", errShort))

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	env := decodeEnvelope(t, rr)
	require.False(t, env.Success)
	require.Equal(t, "INSUFFICIENT_STOCK", env.Code)
	require.Contains(t, env.Message, "product 7 needs 3")
}

func TestRespondErrorHidesInternalMessage(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, errors.New("connection refused on 10.0.0.3"))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	env := decodeEnvelope(t, rr)
	require.Equal(t, "internal error", env.Message)
	require.Equal(t, "INTERNAL", env.Code)
}

func TestRespondErrorConflictIsRetryable(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, fmt.Errorf("post order: %w", shared.ErrConflict))
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "CONFLICT", decodeEnvelope(t, rr).Code)
}

func TestOKWrapsData(t *testing.T) {
	rr := httptest.NewRecorder()
	OK(rr, http.StatusCreated, map[string]int{"id": 4}, "created")

	require.Equal(t, http.StatusCreated, rr.Code)
	env := decodeEnvelope(t, rr)
	require.True(t, env.Success)
	require.Equal(t, "created", env.Message)
	require.Equal(t, map[string]any{"id": float64(4)}, env.Data)
}

type sampleRequest struct {
	Name string `json:"name" validate:"required"`
	Qty  int    `json:"qty" validate:"gt=0"`
}

func TestDecodeAndValidateReportsFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"","qty":0}`))
	var body sampleRequest
	err := DecodeAndValidate(req, validator.New(), &body)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, err.Error(), "Name failed required")
	require.Contains(t, err.Error(), "Qty must satisfy gt=0")
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","qty":1,"extra":true}`))
	var body sampleRequest
	require.ErrorIs(t, DecodeJSON(req, &body), shared.ErrValidation)
}
