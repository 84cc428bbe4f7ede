package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/quanttrader/pkg/signallog"
	"github.com/betbot/quanttrader/pkg/timeseries"
)

const testStrategies = `
strategies:
  - {id: 1, name: fr, type: funding_rate_threshold, symbol: BTCUSDT, timeframe: 1h, side: short,
     max_abs_pos: 0.6, order_type: market, mdd_limit: 0.2, params: [{window: 10, threshold: -0.0001}]}
  - {id: 2, name: zm, type: zscore_momentum, symbol: BTCUSDT, timeframe: 5m, side: long,
     max_abs_pos: 0.5, order_type: limit, mdd_limit: 0.2, params: [{window: 20, threshold: 1.5}]}
  - {id: 3, name: ma, type: ma_pct_diff, symbol: ETHUSDT, timeframe: 1d, side: long,
     max_abs_pos: 0.2, order_type: market, mdd_limit: 0.2, params: [{window: 30, threshold: 0.02}]}
`

func writeConfig(t *testing.T, strategiesYAML string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "strategies.yaml"), []byte(strategiesYAML), 0o644))
	cfg := "dry_run: true\nsignal_store:\n  backend: csv\n  path: " + filepath.Join(dir, "signals") + "\n"
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	path := writeConfig(t, testStrategies)
	out, err := execute(t, "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "BTCUSDT")
	assert.Contains(t, out, "1.1")
	assert.Contains(t, out, "ETHUSDT")
	assert.Contains(t, out, "order_type 不一致")
	assert.Contains(t, out, "3 个策略")
}

func TestValidateRejectsUnknownType(t *testing.T) {
	path := writeConfig(t, `
strategies:
  - {id: 1, name: x, type: rsi_revert, symbol: BTCUSDT, timeframe: 1h, side: long,
     max_abs_pos: 0.1, order_type: market, mdd_limit: 0, params: [{window: 14, threshold: 30}]}
`)
	_, err := execute(t, "validate", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rsi_revert")
}

func TestSignalsCommand(t *testing.T) {
	path := writeConfig(t, testStrategies)
	store, err := signallog.Open(signallog.Options{Backend: "csv", Path: filepath.Join(filepath.Dir(path), "signals")})
	require.NoError(t, err)
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	var s timeseries.Series
	for i := 0; i < 5; i++ {
		s = append(s, timeseries.Point{Time: base.Add(time.Duration(i) * time.Hour), Value: float64(i) / 4})
	}
	_, err = store.Append(context.Background(), "fr_BTCUSDT_1h", s)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	out, err := execute(t, "signals", "--config", path, "--key", "fr_BTCUSDT_1h", "--n", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "2026-02-01 03:00:00")
	assert.Contains(t, out, "2026-02-01 04:00:00")
	assert.NotContains(t, out, "2026-02-01 02:00:00")
	assert.Contains(t, out, "0.75")

	_, err = execute(t, "signals", "--config", path, "--key", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "不存在")
}

func TestRunRequiresConfirmLive(t *testing.T) {
	_, err := execute(t, "run", "--live")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--confirm-live")
}
