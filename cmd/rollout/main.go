package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/0x6flab/namegenerator"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/faisalnazir/rllab"
	"github.com/faisalnazir/rllab/metrics"
	"github.com/faisalnazir/rllab/pkg/channel"
	"github.com/faisalnazir/rllab/pkg/mqtt"
	"github.com/faisalnazir/rllab/pkg/server"
	"github.com/faisalnazir/rllab/rollout"
	"github.com/faisalnazir/rllab/simulator"
	"github.com/faisalnazir/rllab/trainer"
)

const (
	svcName = "rollout"
	pathEnv = ".env"
)

var namegen = namegenerator.NewGenerator()

type envConfig struct {
	LogLevel     string        `env:"ROLLOUT_LOG_LEVEL"     envDefault:"info"`
	WorkerID     string        `env:"ROLLOUT_WORKER_ID"`
	WorkerName   string        `env:"ROLLOUT_WORKER_NAME"`
	MQTTAddress  string        `env:"ROLLOUT_MQTT_ADDRESS"  envDefault:"tcp://localhost:1883"`
	MQTTQoS      uint8         `env:"ROLLOUT_MQTT_QOS"      envDefault:"2"`
	MQTTTimeout  time.Duration `env:"ROLLOUT_MQTT_TIMEOUT"  envDefault:"30s"`
	MQTTUsername string        `env:"ROLLOUT_MQTT_USERNAME"`
	MQTTPassword string        `env:"ROLLOUT_MQTT_PASSWORD"`
	ChannelID    string        `env:"ROLLOUT_CHANNEL_ID"    envDefault:"training"`
	ConfigPath   string        `env:"ROLLOUT_CONFIG_PATH"   envDefault:"trainer.toml"`
	Seed         int64         `env:"ROLLOUT_SEED"          envDefault:"0"`
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}

	if cfg.WorkerID == "" {
		cfg.WorkerID = uuid.NewString()
	}
	if cfg.WorkerName == "" {
		cfg.WorkerName = namegen.Generate()
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Fatalf("failed to parse log level: %s", err.Error())
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})).With(
		slog.String("worker_id", cfg.WorkerID),
		slog.String("worker_name", cfg.WorkerName),
	)
	slog.SetDefault(logger)

	hp, err := rllab.LoadHyperparameters(cfg.ConfigPath)
	if err != nil {
		logger.Error("failed to load hyperparameters", slog.String("error", err.Error()))

		return
	}

	mqttPubSub, err := mqtt.NewPubSub(cfg.MQTTAddress, cfg.MQTTQoS, cfg.WorkerID, cfg.MQTTUsername, cfg.MQTTPassword, cfg.ChannelID, cfg.MQTTTimeout, logger)
	if err != nil {
		logger.Error("failed to initialize mqtt pubsub", slog.String("error", err.Error()))

		return
	}

	policyCache := channel.NewPolicyCache()
	if err := policyCache.Subscribe(ctx, mqttPubSub, cfg.ChannelID); err != nil {
		logger.Error("failed to subscribe to policy topic", slog.String("error", err.Error()))

		return
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	worker := rollout.NewWorker(
		cfg.WorkerID,
		simulator.NewTrack(rng),
		policyCache,
		channel.NewMQTTExperience(mqttPubSub, cfg.ChannelID),
		metrics.NewMQTTRecorder(mqttPubSub, cfg.ChannelID, logger),
		rollout.NewMQTTStatusReporter(mqttPubSub, cfg.ChannelID),
		hp.Rollout,
		hp.Retry,
		rng,
		logger,
	)

	if err := trainer.SubscribeStop(ctx, mqttPubSub, cfg.ChannelID, worker.Stop); err != nil {
		logger.Error("failed to subscribe to stop topic", slog.String("error", err.Error()))

		return
	}

	g.Go(func() error {
		defer cancel()

		return worker.Run(ctx)
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, svcName)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", svcName, err))
	}
}
