// Package metrics exposes Prometheus counters for pipeline runs.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// APICalls counts Codeforces API requests per endpoint.
	APICalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cfdataset",
		Name:      "api_calls_total",
		Help:      "Codeforces API requests issued, per endpoint.",
	}, []string{"endpoint"})

	// FetchFailures counts failed API request attempts per endpoint.
	FetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cfdataset",
		Name:      "fetch_failures_total",
		Help:      "Failed Codeforces API request attempts, per endpoint.",
	}, []string{"endpoint"})

	// RecordsEmitted counts feature records written to dataset batches.
	RecordsEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cfdataset",
		Name:      "records_emitted_total",
		Help:      "Feature records written to dataset batches.",
	})

	// RecordsSkipped counts unresolvable outcomes per skip reason.
	RecordsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cfdataset",
		Name:      "records_skipped_total",
		Help:      "Outcomes skipped as unresolvable, per reason.",
	}, []string{"reason"})

	// ChunksWritten counts completed dataset chunk files.
	ChunksWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cfdataset",
		Name:      "chunks_written_total",
		Help:      "Dataset chunk files written.",
	})
)

// Serve exposes /metrics on addr until ctx is cancelled. Errors other
// than server shutdown are reported on the returned channel.
func Serve(ctx context.Context, addr string) <-chan error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return errCh
}
