package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/install"
	"github.com/aretw0/strata/pkg/workflow"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := New()

	m.ObserveOperation("move", nil)
	m.ObserveOperation("move", errors.New("full"))
	m.ObserveOperation("move", nil)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("move", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("move", "error")))

	m.SetOccupancy("f1", 3, 50)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.samples.WithLabelValues("f1")))
	assert.Equal(t, 50.0, testutil.ToFloat64(m.capacity.WithLabelValues("f1")))

	hooks := m.Hooks()
	hooks.OnSampleChange(context.Background(), &domain.SampleEvent{EventBase: domain.EventBase{Type: domain.EventSampleStored}})
	hooks.OnItemChange(context.Background(), &domain.ItemEvent{EventBase: domain.EventBase{Type: domain.EventItemMoved}})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues(string(domain.EventSampleStored))))

	m.ObservePatch(workflow.Report{WorkflowID: "wf"})
	m.ObservePatch(workflow.Report{WorkflowID: "wf", Applied: true})
	m.ObservePatch(workflow.Report{WorkflowID: "wf", Applied: true, Diff: &domain.DefinitionDiff{AddedStates: []string{"stored"}}})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.patches.WithLabelValues("wf", "skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.patches.WithLabelValues("wf", "unchanged")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.patches.WithLabelValues("wf", "changed")))

	m.ObserveStep(install.StepResult{Name: install.StepReindex, Duration: 10 * time.Millisecond})
	assert.Equal(t, 1, testutil.CollectAndCount(m.steps))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveOperation("delete", nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `strata_storage_operations_total{op="delete",outcome="ok"} 1`), body)
}
