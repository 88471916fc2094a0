package extension

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/vesting"
	"github.com/xraph/vesting/store/memory"
)

func TestDefaultsWithoutFileConfig(t *testing.T) {
	e := New(WithDisableMigrate(), WithAdmins("ops"))

	cfg := e.mergeWithDefaults(e.config)

	assert.True(t, cfg.DisableMigrate)
	assert.Equal(t, []string{"ops"}, cfg.Admins)
	assert.True(t, cfg.VestingActive)
	assert.Equal(t, vesting.DefaultStartTolerance, cfg.StartTolerance)
}

func TestProgrammaticConfigWins(t *testing.T) {
	custom := DefaultConfig()
	custom.PurchaseActive = false
	e := New(WithConfig(custom))

	cfg := e.mergeWithDefaults(e.config)

	assert.False(t, cfg.PurchaseActive)
}

func TestFileConfigMergesProgrammaticFlags(t *testing.T) {
	e := New(WithDisableMigrate(), WithAdmins("ops"), WithRequireConfig(true))

	file := DefaultConfig()
	file.SwapActive = true
	file.Admins = []string{"root"}

	cfg := e.mergeConfigurations(file, e.config)

	assert.True(t, cfg.SwapActive)
	assert.True(t, cfg.DisableMigrate)
	assert.True(t, cfg.RequireConfig)
	assert.Equal(t, []string{"root", "ops"}, cfg.Admins)
}

func TestEngineOptsGrantAdmins(t *testing.T) {
	e := New(WithAdmins("ops"), WithStore(memory.New()))
	e.config = e.mergeWithDefaults(e.config)

	engine := vesting.New(e.store, e.buildEngineOpts()...)
	require.NoError(t, engine.Start(context.Background()))
	defer func() { _ = engine.Stop() }()

	_, err := engine.RegisterAsset(vesting.WithCaller(context.Background(), "ops"), "TKN", 6)
	require.NoError(t, err)

	_, err = engine.RegisterAsset(vesting.WithCaller(context.Background(), "mallory"), "OTHER", 6)
	require.ErrorIs(t, err, vesting.ErrUnauthorized)
}

func TestStartBeforeRegister(t *testing.T) {
	e := New()
	require.Error(t, e.Start(context.Background()))
	require.Error(t, e.Health(context.Background()))
}
