package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	m.RecordStep("DEPLOY_V3_CORE_FACTORY", OutcomeDeployed, 2*time.Second)
	m.RecordStep("DEPLOY_MULTICALL2", OutcomeSkipped, time.Millisecond)
	m.RecordStep("DEPLOY_MULTICALL2", OutcomeSkipped, time.Millisecond)
	m.RecordTxSent("create2")
	m.RecordNonce(42)
	m.RecordStateEntries(3)
	m.RecordError("provider")

	require.Equal(t, 1.0, testutil.ToFloat64(m.stepsTotal.WithLabelValues("DEPLOY_V3_CORE_FACTORY", OutcomeDeployed)))
	require.Equal(t, 2.0, testutil.ToFloat64(m.stepsTotal.WithLabelValues("DEPLOY_MULTICALL2", OutcomeSkipped)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.txsSentTotal.WithLabelValues("create2")))
	require.Equal(t, 42.0, testutil.ToFloat64(m.nonce))
	require.Equal(t, 3.0, testutil.ToFloat64(m.stateEntries))
	require.Equal(t, 1.0, testutil.ToFloat64(m.errorsTotal.WithLabelValues("provider")))
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.RecordStateEntries(13)
	path := filepath.Join(t.TempDir(), "deploy.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), "deploy_v3_state_entries 13"))
	require.Contains(t, string(data), "deploy_v3_last_run_timestamp_seconds")
}

func TestNoopMetrics(t *testing.T) {
	require.NotPanics(t, func() {
		NoopMetrics.RecordStep("x", OutcomeFailed, 0)
		NoopMetrics.RecordError("x")
	})
}
