package strategies

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/quanttrader/internal/domain"
	"github.com/betbot/quanttrader/pkg/config"
)

func newTableAlpha() Alpha {
	return &tableAlpha{signals: map[int][]float64{5: {0, 1, 1}}}
}

func init() {
	RegisterAlpha("table", newTableAlpha)
}

func TestBuildWarmsUpCache(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	a := testConfig(5)
	b := testConfig(5)
	b.ID, b.Name = 8, "agg2"

	list, err := Build(ctx, []config.StrategyConfig{a, b}, Deps{Store: store}, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 7, list[0].ID(), "configuration order preserved")

	for _, s := range list {
		v, err := s.CachedSignal(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1.0, v)
	}
}

func TestBuildUnknownType(t *testing.T) {
	cfg := testConfig(5)
	cfg.Type = "nope"
	_, err := Build(context.Background(), []config.StrategyConfig{cfg}, Deps{Store: newStore(t)}, 1)
	assert.Error(t, err)
	assert.Contains(t, RegisteredTypes(), "table")
}

func TestRegisterDuplicatePanics(t *testing.T) {
	assert.Panics(t, func() { RegisterAlpha("table", newTableAlpha) })
}

func TestBuildWarmupFailure(t *testing.T) {
	RegisterAlpha("failing", func() Alpha { return &tableAlpha{fetchErr: domain.ErrExchangeConnectivity} })
	cfg := testConfig(5)
	cfg.Type = "failing"
	_, err := Build(context.Background(), []config.StrategyConfig{cfg}, Deps{Store: newStore(t)}, 1)
	assert.True(t, errors.Is(err, domain.ErrExchangeConnectivity))
}
