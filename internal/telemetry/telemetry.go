// Package telemetry exports run statistics as OpenTelemetry metrics and
// serves them in Prometheus format.
package telemetry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"

	"github.com/dgnsrekt/tonic/tts"
)

const meterName = "github.com/dgnsrekt/tonic/session"

// Telemetry owns a meter provider backed by a private Prometheus registry.
// It implements session.Observer.
type Telemetry struct {
	provider *sdkmetric.MeterProvider
	handler  http.Handler
	server   *http.Server

	segments     metric.Int64Counter
	chars        metric.Int64Counter
	audio        metric.Float64Counter
	runs         metric.Int64Counter
	firstLatency metric.Float64Histogram
	rtf          metric.Float64Histogram
}

// New creates the provider and instruments. service becomes the
// service.name resource attribute.
func New(service, version string) (*Telemetry, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(service),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, err
	}

	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, err
	}

	t := &Telemetry{
		provider: sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(exporter),
			sdkmetric.WithResource(res),
		),
		handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	if err := t.instruments(t.provider.Meter(meterName)); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Telemetry) instruments(m metric.Meter) error {
	var errs []error
	var err error

	t.segments, err = m.Int64Counter("tonic.segments.synthesized",
		metric.WithDescription("Segments synthesized"))
	errs = append(errs, err)

	t.chars, err = m.Int64Counter("tonic.chars.synthesized",
		metric.WithDescription("Characters of text synthesized"))
	errs = append(errs, err)

	t.audio, err = m.Float64Counter("tonic.audio.generated",
		metric.WithDescription("Seconds of audio generated"), metric.WithUnit("s"))
	errs = append(errs, err)

	t.runs, err = m.Int64Counter("tonic.runs",
		metric.WithDescription("Generation runs by outcome"))
	errs = append(errs, err)

	t.firstLatency, err = m.Float64Histogram("tonic.first_chunk.latency",
		metric.WithDescription("Time from run start to the first chunk"), metric.WithUnit("s"))
	errs = append(errs, err)

	t.rtf, err = m.Float64Histogram("tonic.run.real_time_factor",
		metric.WithDescription("Generation time divided by audio time"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1, 2, 5, 10))
	errs = append(errs, err)

	return errors.Join(errs...)
}

// ObserveChunk records one synthesized segment.
func (t *Telemetry) ObserveChunk(ctx context.Context, ev tts.StreamEvent, stats tts.RunStats) {
	t.segments.Add(ctx, 1)
	t.chars.Add(ctx, int64(len([]rune(ev.Text))))
	t.audio.Add(ctx, ev.Chunk.Seconds())
	if stats.Segments == 1 && stats.FirstChunkLatency != nil {
		t.firstLatency.Record(ctx, stats.FirstChunkLatency.Seconds())
	}
}

// ObserveRun records how a run ended.
func (t *Telemetry) ObserveRun(ctx context.Context, stats tts.RunStats, err error) {
	outcome := "completed"
	switch {
	case errors.Is(err, context.Canceled):
		outcome = "cancelled"
	case err != nil:
		outcome = "failed"
	}
	t.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	if stats.RealTimeFactor != nil {
		t.rtf.Record(ctx, *stats.RealTimeFactor)
	}
}

// Handler serves the metrics in Prometheus text format.
func (t *Telemetry) Handler() http.Handler {
	return t.handler
}

// Serve listens on addr and serves /metrics until Shutdown. It returns the
// bound address, which differs from addr when addr uses port 0.
func (t *Telemetry) Serve(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", t.handler)
	t.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := t.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", "error", err)
		}
	}()
	log.Info("serving metrics", "addr", ln.Addr().String())
	return ln.Addr().String(), nil
}

// Name implements tts.LifecycleComponent.
func (t *Telemetry) Name() string { return "telemetry" }

// Shutdown stops the server and flushes the provider.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.server != nil {
		errs = append(errs, t.server.Shutdown(ctx))
	}
	errs = append(errs, t.provider.Shutdown(ctx))
	return errors.Join(errs...)
}

// ForceStop closes the server without waiting.
func (t *Telemetry) ForceStop() error {
	if t.server != nil {
		return t.server.Close()
	}
	return nil
}
