package observability

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"ecordtopo/internal/domain"
	"ecordtopo/internal/logging"
)

func TestRecordTransitionSetsStateGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewDeploymentCollector(reg)
	if err != nil {
		t.Fatalf("NewDeploymentCollector: %v", err)
	}

	c.RecordTransition(1, domain.StateBuilt)
	c.RecordTransition(1, domain.StateStitched)
	c.RecordTransition(2, domain.StateBuilt)

	if got := testutil.ToFloat64(c.DomainState.WithLabelValues("1", "stitched")); got != 1 {
		t.Errorf("domain 1 stitched = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.DomainState.WithLabelValues("1", "built")); got != 0 {
		t.Errorf("domain 1 built = %v, want 0", got)
	}
	if got := testutil.ToFloat64(c.Transitions.WithLabelValues("built")); got != 2 {
		t.Errorf("transitions to built = %v, want 2", got)
	}
}

func TestCollectorReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewDeploymentCollector(reg)
	if err != nil {
		t.Fatal(err)
	}
	second, err := NewDeploymentCollector(reg)
	if err != nil {
		t.Fatalf("second registration: %v", err)
	}
	first.RecordFailure("stitch")
	if got := testutil.ToFloat64(second.Failures.WithLabelValues("stitch")); got != 1 {
		t.Errorf("shared failure counter = %v, want 1", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *DeploymentCollector
	c.RecordTransition(1, domain.StateBuilt)
	c.RecordFailure("build")
	c.ObserveExport("netcfg", time.Millisecond)
	c.SetTopologyCounts(1, 2, 3)
	if c.Handler() == nil {
		t.Error("nil collector should still serve the default registry")
	}
}

func TestMetricsHandlerExposesTopology(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewDeploymentCollector(reg)
	if err != nil {
		t.Fatal(err)
	}
	c.SetTopologyCounts(5, 2, 7)
	c.RecordTransition(1, domain.StateRunning)
	c.ObserveExport("netcfg", 3*time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"ecord_domain_state",
		"ecord_domain_transitions_total",
		"ecord_export_duration_seconds",
		"ecord_topology_switches 5",
		"ecord_topology_hosts 2",
		"ecord_topology_links 7",
	} {
		if !strings.Contains(body, metric) {
			t.Errorf("expected %q in /metrics output", metric)
		}
	}
	if n := histogramSampleCount(t, reg, "ecord_export_duration_seconds"); n != 1 {
		t.Errorf("export samples = %d, want 1", n)
	}
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{}, logging.Noop())
	if err != nil {
		t.Fatal(err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("noop shutdown: %v", err)
	}
}

func TestInitTracingStdoutExportsPhases(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()
	shutdown, err := InitTracing(ctx, TracingConfig{
		Enabled:     true,
		Exporter:    "stdout",
		SampleRatio: 1,
		Writer:      &buf,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	_, span := StartPhase(ctx, "stitch", 3)
	EndPhase(span, errors.New("attach failed"))
	ShutdownWithTimeout(ctx, shutdown, nil)

	out := buf.String()
	if !strings.Contains(out, `"stitch"`) || !strings.Contains(out, "attach failed") {
		t.Errorf("exported span missing phase or error: %s", out)
	}

	// restore the noop provider for other tests
	if _, err := InitTracing(ctx, TracingConfig{}, nil); err != nil {
		t.Fatal(err)
	}
}

func TestInitTracingUnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, nil)
	if err == nil {
		t.Error("expected error for unsupported exporter")
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	var total uint64
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			total += histogram(m).GetSampleCount()
		}
	}
	return total
}

func histogram(m *dto.Metric) *dto.Histogram { return m.GetHistogram() }
