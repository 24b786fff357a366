// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveFetch(t *testing.T) {
	m := New()

	m.ObserveFetch("arXiv", 3, 120*time.Millisecond, nil)
	m.ObserveFetch("arXiv", 0, 10*time.Millisecond, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetchRequests.WithLabelValues("arXiv", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetchRequests.WithLabelValues("arXiv", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.fetchRecords.WithLabelValues("arXiv")))
}

func TestObserveIndexBuildAndSessions(t *testing.T) {
	m := New()

	m.ObserveIndexBuild(9, nil)
	m.ObserveIndexBuild(0, errors.New("empty"))
	m.SetActiveSessions(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.indexBuilds.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.indexBuilds.WithLabelValues("error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.activeSessions))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveFetch("PubMed", 1, time.Second, nil)
		m.ObserveIndexBuild(1, nil)
		m.ObserveLLM("chat", time.Second, nil)
		m.SetActiveSessions(1)
	})
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveLLM("chat", 2*time.Second, nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "research_chat_llm_calls_total")
	assert.Contains(t, string(body), `kind="chat"`)
}
