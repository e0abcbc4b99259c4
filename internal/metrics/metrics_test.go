package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/procurematch/internal/core/domain"
)

func TestRecorder(t *testing.T) {
	m := New()

	m.PlanComputed(domain.PlanFullyMatched)
	m.PlanComputed(domain.PlanFullyMatched)
	m.PlanComputed(domain.PlanNoMatch)
	m.PlanAccepted(2, 100, decimal.NewFromInt(450))
	m.AcceptRejected("already_accepted")
	m.JournalWrite(domain.EventOrdersAccepted, "ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.plansComputed.WithLabelValues("Fully Matched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.plansComputed.WithLabelValues("No Match")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.plansAccepted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ordersCreated))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.unitsAllocated))
	assert.Equal(t, 450.0, testutil.ToFloat64(m.allocatedCost))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.acceptRejected.WithLabelValues("already_accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.journalWrites.WithLabelValues("orders.accepted", "ok")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.PlanAccepted(1, 5, decimal.NewFromInt(10))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "procurematch_plans_accepted_total 1")
	assert.Contains(t, string(body), "go_goroutines")
}
