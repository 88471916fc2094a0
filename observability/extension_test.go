package observability_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/vesting"
	"github.com/xraph/vesting/observability"
	"github.com/xraph/vesting/schedule"
	"github.com/xraph/vesting/store/memory"
	"github.com/xraph/vesting/types"
)

var t0 = time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)

func value(c observability.Counter) float64 {
	return testutil.ToFloat64(c.(prometheus.Collector))
}

func TestMetricsFollowEngineActivity(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))

	e := vesting.New(memory.New(),
		vesting.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		vesting.WithAuthorizer(vesting.NewAdminSet("admin")),
		vesting.WithClock(func() time.Time { return t0 }),
		vesting.WithPlugin(metrics),
	)
	require.NoError(t, e.Start(ctx))
	defer func() { _ = e.Stop() }()

	adm := vesting.WithCaller(ctx, "admin")
	_, err := e.RegisterAsset(adm, "TKN", 0)
	require.NoError(t, err)
	_, err = e.Deposit(adm, "TKN", "treasury", types.NewAmount(100))
	require.NoError(t, err)

	p := schedule.Params{
		Asset:           "TKN",
		CliffDuration:   schedule.Weeks(4),
		VestingDuration: schedule.Weeks(52),
		StartTime:       t0,
	}
	for _, who := range []string{"alice", "bob"} {
		_, err = e.Grant(adm, vesting.GrantRequest{Beneficiary: who, Amount: types.NewAmount(40), Params: p}, t0)
		require.NoError(t, err)
	}
	_, err = e.Cancel(adm, "bob", 0, t0.Add(schedule.Weeks(1)))
	require.NoError(t, err)
	_, err = e.Withdraw(adm, "TKN", "treasury", types.NewAmount(1000))
	require.ErrorIs(t, err, vesting.ErrInsufficientUnlockedSupply)

	assert.InDelta(t, 2, value(metrics.ScheduleGranted), 0)
	assert.InDelta(t, 1, value(metrics.ScheduleCancelled), 0)
	assert.InDelta(t, 1, value(metrics.AssetDeposits), 0)
	assert.InDelta(t, 1, value(metrics.SupplyInsufficient), 0)
	assert.InDelta(t, 0, value(metrics.ScheduleClaims), 0)

	n, err := testutil.GatherAndCount(reg, "vesting_schedule_granted_total", "vesting_schedule_vesting_weeks")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFactoryReusesCollectors(t *testing.T) {
	f := observability.NewPrometheusFactory(prometheus.NewRegistry())

	a := f.Counter("vesting.x")
	b := f.Counter("vesting.x")
	a.Inc()
	b.Add(2)

	assert.Same(t, a, b)
	assert.InDelta(t, 3, value(a), 0)
}
