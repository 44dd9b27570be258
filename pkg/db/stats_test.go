package db

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

// gather registers s against a fresh registry and returns the families it
// produces, keyed by metric name, so assertions can dig into individual
// counter/gauge values without reaching into Statistics internals.
func gather(t *testing.T, s *Statistics) map[string]*dto.MetricFamily {
	t.Helper()
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(s))
	families, err := reg.Gather()
	require.NoError(t, err)

	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func TestStatisticsCountsWritesAndGets(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, d.Put(ctx, DefaultColumnName, []byte("k"), []byte("v")))
	_, err := d.Get(DefaultColumnName, []byte("k"))
	require.NoError(t, err)
	_, err = d.Get(DefaultColumnName, []byte("missing"))
	require.Error(t, err)

	families := gather(t, d.Statistics())

	writes, ok := families["lsmkv_writes_total"]
	require.True(t, ok, "expected lsmkv_writes_total to be collected")
	require.Len(t, writes.Metric, 1)
	require.Equal(t, float64(1), writes.Metric[0].GetCounter().GetValue())

	gets, ok := families["lsmkv_gets_total"]
	require.True(t, ok, "expected lsmkv_gets_total to be collected")
	var hitTotal, missTotal float64
	for _, m := range gets.Metric {
		for _, l := range m.Label {
			if l.GetName() == "result" && l.GetValue() == "hit" {
				hitTotal += m.GetCounter().GetValue()
			}
			if l.GetName() == "result" && l.GetValue() == "miss" {
				missTotal += m.GetCounter().GetValue()
			}
		}
	}
	require.Equal(t, float64(1), hitTotal)
	require.Equal(t, float64(1), missTotal)
}

func TestStatisticsStallGaugeReflectsColumnState(t *testing.T) {
	d := openTestDB(t)
	families := gather(t, d.Statistics())

	stall, ok := families["lsmkv_column_stall"]
	require.True(t, ok, "expected lsmkv_column_stall to be collected")
	require.Len(t, stall.Metric, 1)
	require.Equal(t, float64(0), stall.Metric[0].GetGauge().GetValue())
}
