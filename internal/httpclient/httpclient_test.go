package httpclient

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStatusOK(t *testing.T) {
	assert.Equal(t, OutcomeOK, classifyStatus(http.StatusOK, NotFoundIsBanned))
}

func TestClassifyStatusNotFoundBanned(t *testing.T) {
	assert.Equal(t, OutcomeBanned, classifyStatus(http.StatusNotFound, NotFoundIsBanned))
}

func TestClassifyStatusNotFoundContent(t *testing.T) {
	assert.Equal(t, OutcomeNotFound, classifyStatus(http.StatusNotFound, NotFoundIsContent))
}

func TestClassifyStatusForbidden(t *testing.T) {
	assert.Equal(t, OutcomeForbidden, classifyStatus(http.StatusForbidden, NotFoundIsContent))
}

func TestClassifyStatusRateLimit(t *testing.T) {
	assert.Equal(t, OutcomeRateLimit, classifyStatus(http.StatusTooManyRequests, NotFoundIsContent))
}

func TestClassifyStatusUnknownFallsBackToNetworkErr(t *testing.T) {
	assert.Equal(t, OutcomeNetworkErr, classifyStatus(http.StatusInternalServerError, NotFoundIsContent))
}

func TestDecodeJSON(t *testing.T) {
	var out struct {
		Name string `json:"name"`
	}
	err := DecodeJSON([]byte(`{"name":"reddit"}`), &out)
	assert.NoError(t, err)
	assert.Equal(t, "reddit", out.Name)
}

func TestDecodeJSONInvalid(t *testing.T) {
	var out map[string]any
	err := DecodeJSON([]byte(`not json`), &out)
	assert.Error(t, err)
}
