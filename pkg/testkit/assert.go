package testkit

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// Envelope mirrors the pkg/response JSON shape.
type Envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  json.RawMessage `json:"errors"`
}

// DecodeEnvelope asserts the recorder status and decodes its envelope. When
// dataOut is non-nil the data member is unmarshalled into it.
func DecodeEnvelope(t testing.TB, rec *httptest.ResponseRecorder, wantStatus int, dataOut interface{}) Envelope {
	t.Helper()

	require.Equal(t, wantStatus, rec.Code, "body: %s", rec.Body.String())

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())

	if dataOut != nil {
		require.NotEmpty(t, env.Data, "envelope has no data: %s", rec.Body.String())
		require.NoError(t, json.Unmarshal(env.Data, dataOut))
	}
	return env
}
