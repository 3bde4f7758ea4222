package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHelpersNoopBeforeRegister(t *testing.T) {
	require.False(t, regOK.Load())
	IncLaunch("dota")
	IncLaunchFailure("dota", "other")
	IncClose("dota")
	ObserveSession("dota", 12)
	SetRunningApps(3)
	assert.Zero(t, testutil.CollectAndCount(appLaunches))
}

func TestRegisterAndCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.True(t, regOK.Load())

	// Repeated registration is a no-op, including against other registries.
	require.NoError(t, Register(reg))
	require.NoError(t, Register(prometheus.NewRegistry()))

	IncLaunch("dota")
	IncLaunch("dota")
	IncClose("dota")
	ObserveSession("dota", 90)
	SetRunningApps(2)

	assert.InDelta(t, 2, testutil.ToFloat64(appLaunches.WithLabelValues("dota")), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(appCloses.WithLabelValues("dota")), 0.001)
	assert.InDelta(t, 2, testutil.ToFloat64(runningApps), 0.001)
}
