package runtime

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/routeflow/internal/runtime/jsoncodec"
)

func TestPolicySummaries(t *testing.T) {
	env := newTestService(t, nil)

	assert.Equal(t, []PolicySummary{
		{Name: "order-routing", Rules: []string{"eu", "us"}},
		{Name: "tracking-defaults", Rules: []string{"default-process-name"}},
	}, env.svc.PolicySummaries())
}

func TestAdminHandlers(t *testing.T) {
	env := newTestService(t, nil)
	require.NoError(t, RegisterMessageHandler(env.svc, MessageHandlerRegistration{
		Name:         "consumer",
		ConsumeQueue: "in",
		Handler:      passThrough,
	}))
	env.svc.registerAdminHandlers(9000)
	mux := env.svc.httpServers[9000]
	require.NotNil(t, mux)

	t.Run("policies", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/policies", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var got []PolicySummary
		require.NoError(t, jsoncodec.Unmarshal(rec.Body.Bytes(), &got))
		assert.Len(t, got, 2)
	})

	t.Run("handlers", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/handlers", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var got []HandlerSnapshot
		require.NoError(t, jsoncodec.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, "consumer", got[0].Name)
	})

	t.Run("jobs", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects writes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/policies", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Equal(t, http.MethodGet, rec.Header().Get("Allow"))
	})
}
