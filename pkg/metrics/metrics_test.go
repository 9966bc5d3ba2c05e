package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterClientCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterClientCollectors(reg)
	RegisterCollectors(reg)

	before := testutil.ToFloat64(RefreshTotal.WithLabelValues("success"))
	RefreshTotal.WithLabelValues("success").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(RefreshTotal.WithLabelValues("success")))

	n, err := testutil.GatherAndCount(reg, "hojaruta_client_refresh_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// a second registration of the same collectors is a programming error
	assert.Panics(t, func() { RegisterClientCollectors(reg) })
}
