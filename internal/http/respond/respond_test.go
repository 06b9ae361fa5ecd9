package respond_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seaward/backoffice/internal/http/respond"
)

func TestAmount_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(respond.Amount(decimal.RequireFromString("110")))
	require.NoError(t, err)
	assert.JSONEq(t, `"110.00"`, string(b))

	b, err = json.Marshal(respond.Amount(decimal.RequireFromString("0.5")))
	require.NoError(t, err)
	assert.JSONEq(t, `"0.50"`, string(b))
}

func TestDateParam(t *testing.T) {
	var body struct {
		When *respond.DateParam `json:"when"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"when":"2024-02-29"}`), &body))
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), *body.When.Time())

	assert.Error(t, json.Unmarshal([]byte(`{"when":"29/02/2024"}`), &body))
}

func TestInternal_HidesError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/investors", nil)

	respond.Internal(rec, req, errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
}
