package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/faisalnazir/rllab/metrics"
	"github.com/faisalnazir/rllab/pkg/api"
	"github.com/faisalnazir/rllab/trainer"
)

// MakeHandler mounts the trainer API: job status, current policy, metrics
// export, cancellation, prometheus scrape and health.
func MakeHandler(svc trainer.Service, logger *slog.Logger, instanceID string) http.Handler {
	mux := chi.NewRouter()

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(api.LoggingErrorEncoder(logger, api.EncodeError)),
	}

	mux.Route("/job", func(r chi.Router) {
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			getJobEndpoint(svc),
			decodeEmptyReq,
			api.EncodeResponse,
			opts...,
		), "get-job").ServeHTTP)
		r.Post("/cancel", otelhttp.NewHandler(kithttp.NewServer(
			cancelEndpoint(svc),
			decodeEmptyReq,
			api.EncodeResponse,
			opts...,
		), "cancel-job").ServeHTTP)
	})

	mux.Get("/policy", otelhttp.NewHandler(kithttp.NewServer(
		getPolicyEndpoint(svc),
		decodeEmptyReq,
		api.EncodeResponse,
		opts...,
	), "get-policy").ServeHTTP)

	mux.Get("/metrics/export", otelhttp.NewHandler(kithttp.NewServer(
		exportMetricsEndpoint(svc),
		decodeEmptyReq,
		encodeMetricsResponse,
		opts...,
	), "export-metrics").ServeHTTP)

	mux.Get("/metrics", promhttp.Handler().ServeHTTP)
	mux.Get("/health", health(instanceID))

	return mux
}

func decodeEmptyReq(_ context.Context, _ *http.Request) (any, error) {
	return nil, nil
}

// encodeMetricsResponse writes the export contract's flat record list
// rather than the internal record shape.
func encodeMetricsResponse(_ context.Context, w http.ResponseWriter, response any) error {
	resp, ok := response.(metricsResponse)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)

		return nil
	}
	w.Header().Set("Content-Type", api.ContentType)

	return metrics.Export(w, resp.Records)
}

func health(instanceID string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", api.ContentType)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":      "ok",
			"instance_id": instanceID,
		})
	}
}
