package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobTransitionsCountsPerStatus(t *testing.T) {
	before := testutil.ToFloat64(JobTransitions.WithLabelValues("Started"))
	JobTransitions.WithLabelValues("Started").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(JobTransitions.WithLabelValues("Started")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	EmailsSent.Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "emails_sent_total")
	assert.Contains(t, string(body), "go_goroutines")
}
