package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/faisalnazir/rllab"
	"github.com/faisalnazir/rllab/job"
	"github.com/faisalnazir/rllab/metrics"
	"github.com/faisalnazir/rllab/pkg/channel"
	"github.com/faisalnazir/rllab/pkg/mqtt"
	"github.com/faisalnazir/rllab/pkg/prometheus"
	"github.com/faisalnazir/rllab/pkg/server"
	"github.com/faisalnazir/rllab/pkg/storage"
	"github.com/faisalnazir/rllab/trainer"
	"github.com/faisalnazir/rllab/trainer/api"
	"github.com/faisalnazir/rllab/trainer/middleware"
)

const (
	svcName       = "trainer"
	defHTTPPort   = "7070"
	envPrefixHTTP = "TRAINER_HTTP_"
	pathEnv       = ".env"
)

type envConfig struct {
	LogLevel     string        `env:"TRAINER_LOG_LEVEL"     envDefault:"info"`
	InstanceID   string        `env:"TRAINER_INSTANCE_ID"`
	MQTTAddress  string        `env:"TRAINER_MQTT_ADDRESS"  envDefault:"tcp://localhost:1883"`
	MQTTQoS      uint8         `env:"TRAINER_MQTT_QOS"      envDefault:"2"`
	MQTTTimeout  time.Duration `env:"TRAINER_MQTT_TIMEOUT"  envDefault:"30s"`
	MQTTUsername string        `env:"TRAINER_MQTT_USERNAME"`
	MQTTPassword string        `env:"TRAINER_MQTT_PASSWORD"`
	ChannelID    string        `env:"TRAINER_CHANNEL_ID"    envDefault:"training"`
	ConfigPath   string        `env:"TRAINER_CONFIG_PATH"   envDefault:"trainer.toml"`
	MetricsFile  string        `env:"TRAINER_METRICS_FILE"  envDefault:"metrics.json"`
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Fatalf("failed to parse log level: %s", err.Error())
	}
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	hp, err := rllab.LoadHyperparameters(cfg.ConfigPath)
	if err != nil {
		logger.Error("failed to load hyperparameters", slog.String("error", err.Error()))

		return
	}

	mqttPubSub, err := mqtt.NewPubSub(cfg.MQTTAddress, cfg.MQTTQoS, svcName, cfg.MQTTUsername, cfg.MQTTPassword, "", cfg.MQTTTimeout, logger)
	if err != nil {
		logger.Error("failed to initialize mqtt pubsub", slog.String("error", err.Error()))

		return
	}

	experience, err := channel.NewExperience(hp.Trainer.ChannelCapacity)
	if err != nil {
		logger.Error("failed to initialize experience channel", slog.String("error", err.Error()))

		return
	}
	sink := channel.NewExperienceSink(experience, logger)
	if err := sink.Subscribe(ctx, mqttPubSub, cfg.ChannelID); err != nil {
		logger.Error("failed to subscribe to experience topic", slog.String("error", err.Error()))

		return
	}

	policyLocal, err := channel.NewPolicy(hp.Trainer.RecentVersions)
	if err != nil {
		logger.Error("failed to initialize policy channel", slog.String("error", err.Error()))

		return
	}
	policies := channel.NewMQTTPolicy(policyLocal, mqttPubSub, cfg.ChannelID)

	agg := metrics.NewAggregator()
	metricsSink := metrics.NewSink(agg)
	if err := metricsSink.Subscribe(ctx, mqttPubSub, cfg.ChannelID); err != nil {
		logger.Error("failed to subscribe to metrics topic", slog.String("error", err.Error()))

		return
	}

	registry := trainer.NewWorkerRegistry(3 * hp.Rollout.AliveInterval)
	if err := registry.Subscribe(ctx, mqttPubSub, cfg.ChannelID); err != nil {
		logger.Error("failed to subscribe to worker status topic", slog.String("error", err.Error()))

		return
	}

	controller := job.NewSignalController()
	staleDrops := prometheus.MakeCounter(svcName, "batch", "stale_episodes_dropped", "Episodes rejected for exceeding the version lag tolerance.")

	svc, err := trainer.NewService(
		hp.Trainer,
		hp.Retry,
		experience,
		policies,
		trainer.NewReinforce(hp.Trainer.LearningRate, policies),
		controller,
		agg,
		storage.NewInMemoryStorage(),
		trainer.NewMQTTStopBroadcaster(mqttPubSub, cfg.ChannelID),
		registry,
		staleDrops,
		logger,
	)
	if err != nil {
		logger.Error("failed to initialize trainer service", slog.String("error", err.Error()))

		return
	}
	svc = middleware.Logging(logger, svc)
	svc = middleware.Tracing(noop.NewTracerProvider().Tracer(svcName), svc)
	counter, latency := prometheus.MakeMetrics(svcName, "api")
	svc = middleware.Metrics(counter, latency, svc)

	httpServerConfig := server.Config{Port: defHTTPPort}
	if err := env.ParseWithOptions(&httpServerConfig, env.Options{Prefix: envPrefixHTTP}); err != nil {
		logger.Error(fmt.Sprintf("failed to load %s HTTP server configuration : %s", svcName, err.Error()))

		return
	}

	hs := server.NewHTTPServer(ctx, cancel, svcName, httpServerConfig, api.MakeHandler(svc, logger, cfg.InstanceID), logger)

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		defer cancel()

		if err := svc.Run(ctx); err != nil {
			return err
		}

		return exportMetrics(cfg.MetricsFile, agg, logger)
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, svcName, hs)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", svcName, err))
	}
}

func exportMetrics(path string, agg *metrics.Aggregator, logger *slog.Logger) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := metrics.Export(f, agg.Snapshot()); err != nil {
		return err
	}
	logger.Info("final metrics exported", slog.String("path", path))

	return nil
}
