package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestMetrics_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(WithRegistry(reg), WithNamespace("test"))

	m.ComponentDefined("alp-navbar")
	m.Rendered("alp-navbar", false, time.Millisecond)
	m.Rendered("alp-navbar", true, time.Millisecond)
	m.Rendered("alp-navbar", true, time.Millisecond)
	m.InsertionFailed("alp-item", "A010")
	m.InsertionFailed("alp-item", "")
	m.DeclarationFetched("navbar.html", time.Millisecond, nil)
	m.DeclarationFetched("s3://b/k", time.Millisecond, errors.New("boom"))
	m.PageRendered(nil)
	m.ReloadBroadcast()

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"defined", m.componentsDefined.WithLabelValues("alp-navbar"), 1},
		{"append", m.rendersTotal.WithLabelValues("alp-navbar", "append"), 1},
		{"replace", m.rendersTotal.WithLabelValues("alp-navbar", "replace"), 2},
		{"A010", m.insertionFailures.WithLabelValues("alp-item", "A010"), 1},
		{"unknown code", m.insertionFailures.WithLabelValues("alp-item", "unknown"), 1},
		{"file ok", m.declarations.WithLabelValues("file", "success"), 1},
		{"s3 error", m.declarations.WithLabelValues("s3", "error"), 1},
		{"pages", m.pagesRendered.WithLabelValues("success"), 1},
		{"reloads", m.reloads, 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(tt.c); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}

	if n := testutil.CollectAndCount(m.renderDuration); n != 1 {
		t.Errorf("render duration series = %d, want 1", n)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ComponentDefined("x-y")
	m.Rendered("x-y", false, 0)
	m.InsertionFailed("x-y", "A010")
	m.DeclarationFetched("a", 0, nil)
	m.PageRendered(nil)
	m.ReloadBroadcast()
}

type recordingSpan struct {
	noop.Span
	status codes.Code
	errs   []error
	ended  bool
}

func (s *recordingSpan) SetStatus(code codes.Code, _ string) { s.status = code }

func (s *recordingSpan) RecordError(err error, _ ...trace.EventOption) {
	s.errs = append(s.errs, err)
}

func (s *recordingSpan) End(...trace.SpanEndOption) { s.ended = true }

func TestEndSpan(t *testing.T) {
	ok := &recordingSpan{}
	EndSpan(ok, nil)
	if ok.status != codes.Ok || !ok.ended || len(ok.errs) != 0 {
		t.Errorf("success span = %+v", ok)
	}

	failed := &recordingSpan{}
	EndSpan(failed, errors.New("boom"))
	if failed.status != codes.Error || !failed.ended || len(failed.errs) != 1 {
		t.Errorf("failed span = %+v", failed)
	}
}

func TestStartSpan(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "alpml.test", AttrPage.String("index.html"))
	defer span.End()
	if !trace.SpanFromContext(ctx).SpanContext().Equal(span.SpanContext()) {
		t.Error("context should carry the started span")
	}
}
