package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.TotalRequests.Inc()
	c.TotalRequests.Inc()
	c.SuccessfulRequests.Inc()
	c.FaucetBalance.Set(42)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.TotalRequests))

	expected := `
# HELP faucet_successful_requests_total Number of drip requests that ended in a transfer.
# TYPE faucet_successful_requests_total counter
faucet_successful_requests_total 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "faucet_successful_requests_total"))

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestNewUnregistered(t *testing.T) {
	c := New(nil)
	c.TotalRequests.Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(c.TotalRequests))
}
