package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareCountsByRouteTemplate(t *testing.T) {
	m := New()
	r := mux.NewRouter()
	r.Use(m.Middleware)
	r.HandleFunc("/api/me", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods(http.MethodGet)

	for i := 0; i < 3; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/me?id=1", nil))
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/me", "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.httpInFlight))
}

func TestOrderCounters(t *testing.T) {
	m := New()
	m.OrderPlaced(20000)
	m.OrderPlaced(15000)
	m.OrderRejected("deadline")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ordersPlaced))
	assert.Equal(t, 35000.0, testutil.ToFloat64(m.orderRevenue))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ordersRejected.WithLabelValues("deadline")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.UpdateReceived("contact")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `lunchbot_bot_updates_total{kind="contact"} 1`)
}
