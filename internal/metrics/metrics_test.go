package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.NodeTranslated("ProjectionExecNode")
	m.NodeTranslated("ProjectionExecNode")
	m.NodeTranslated("CsvScanExecNode")
	m.TranslationFailed("XP002")
	m.TranslationFailed("")
	m.ObserveTranslation(3 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.nodesTranslated.WithLabelValues("ProjectionExecNode")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.translationErrors.WithLabelValues("unknown")))

	expected := `
# HELP quantadist_plan_translation_errors_total Count of failed plan translations, by error code.
# TYPE quantadist_plan_translation_errors_total counter
quantadist_plan_translation_errors_total{code="XP002"} 1
quantadist_plan_translation_errors_total{code="unknown"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "quantadist_plan_translation_errors_total"))
	assert.Equal(t, 1, testutil.CollectAndCount(m.translationDuration))
}

func TestMetricsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.NodeTranslated("x")
		m.TranslationFailed("y")
		m.ObserveTranslation(time.Second)
	})

	unregistered, err := New(nil)
	require.NoError(t, err)
	unregistered.NodeTranslated("x")
	assert.Equal(t, 1.0, testutil.ToFloat64(unregistered.nodesTranslated.WithLabelValues("x")))
}
