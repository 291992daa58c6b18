package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"contrib.go.opencensus.io/exporter/prometheus"
	"github.com/etherlabsio/healthcheck/v2"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"

	"github.com/padme-experiment/padme-cdr/pkg/logging"
)

const logMetrics = "metrics"

var log = logging.New(logMetrics)

var registerOnce sync.Once

// RegisterViews makes the views available to every exporter. Safe to call more than once.
func RegisterViews() {
	registerOnce.Do(func() {
		if err := view.Register(CDRViews...); err != nil {
			panic(err)
		}
	})
}

func Exporter(namespace string) http.Handler {
	exporter, err := prometheus.NewExporter(prometheus.Options{
		Namespace: namespace,
	})
	if err != nil {
		log.Errorf("could not create the prometheus stats exporter: %v", err)
		return http.NotFoundHandler()
	}

	RegisterViews()
	stats.Record(context.Background(), CDRInfo.M(int64(1)))
	return exporter
}

// Serve exposes /metrics and /healthcheck on listen until ctx is done.
func Serve(ctx context.Context, listen string, namespace string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Exporter(namespace))
	mux.Handle("/healthcheck", healthcheck.Handler())

	server := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info("metrics server shutdown")
		if err := server.Shutdown(context.Background()); err != nil {
			log.Errorf("shutdown metrics server: %s", err)
		}
	}()

	log.Infow("metrics server listening", "addr", listen)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
