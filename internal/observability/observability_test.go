package observability_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seaward/backoffice/internal/observability"
)

func TestInitMetrics_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	observability.InitMetrics(reg)

	observability.LedgerTransactions.WithLabelValues("Deposit", "success").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}

	assert.Contains(t, names, "ledger_transactions_total")
	assert.Contains(t, names, "ledger_record_duration_seconds")

	assert.Panics(t, func() { observability.InitMetrics(reg) })
}

func TestInitTracing_NoEndpoint(t *testing.T) {
	shutdown, err := observability.InitTracing(context.Background(), "backoffice", "", false)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
