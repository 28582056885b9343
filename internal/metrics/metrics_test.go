package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RoomLifecycle(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RoomCreated("r1")
	m.RoomCreated("r2")
	m.RoomRemoved("r1")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RoomsLive))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RoomsCreated))
}

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Signal("offer", "relayed")
	m.Signal("offer", "relayed")
	m.Signal("answer", "not_found")
	m.ChatAppended()
	m.ChatDelivered(true)
	m.ChatDelivered(false)
	m.Error("invalid_request")
	m.ConnOpened()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SignalsTotal.WithLabelValues("offer", "relayed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SignalsTotal.WithLabelValues("answer", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChatMessagesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChatDeliveriesTotal.WithLabelValues("dropped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("invalid_request")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WsConnections))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	m.RoomCreated("r")
	m.Signal("offer", "relayed")
	m.ChatDelivered(false)

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestMetrics_HandlerExposesCollectors(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ChatAppended()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "meet_chat_messages_total 1"))
}
