package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCollectors(t *testing.T) {
	m := New(nil)
	m.Notifications.WithLabelValues("reminder").Inc()
	m.Deliveries.WithLabelValues("sms", OutcomeDropped).Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `carecircle_notifications_total{kind="reminder"} 1`)
	assert.Contains(t, body, `carecircle_deliveries_total{outcome="dropped",sink="sms"} 1`)
}
