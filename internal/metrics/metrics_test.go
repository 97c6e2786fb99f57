package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	reg := NewRegistry()
	m := New(reg)

	m.Observe("deposit", nil, decimal.RequireFromString("10.5"))
	m.Observe("deposit", nil, decimal.RequireFromString("4.5"))
	m.Observe("deposit", errors.New("nope"), decimal.NewFromInt(100))
	m.YieldCredited(3)
	m.YieldCredited(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("deposit", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("deposit", "error")))
	assert.Equal(t, 15.0, testutil.ToFloat64(m.amount.WithLabelValues("deposit")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.yieldAccounts))

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "bankapp_operations_total"))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.Observe("withdraw", nil, decimal.NewFromInt(1))
	m.YieldCredited(1)
}
