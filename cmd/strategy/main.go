package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"

	"github.com/absmach/fedavg"
	"github.com/absmach/fedavg/pkg/client"
	"github.com/absmach/fedavg/pkg/fl"
	"github.com/absmach/fedavg/pkg/mqtt"
	"github.com/absmach/fedavg/pkg/serde"
	"github.com/absmach/fedavg/pkg/storage"
	"github.com/absmach/fedavg/strategy"
	"github.com/absmach/fedavg/strategy/api"
	"github.com/absmach/fedavg/strategy/middleware"
	"github.com/absmach/supermq/pkg/jaeger"
	"github.com/absmach/supermq/pkg/prometheus"
	"github.com/absmach/supermq/pkg/server"
	httpserver "github.com/absmach/supermq/pkg/server/http"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

const (
	svcName       = "fedavg"
	defHTTPPort   = "7070"
	envPrefix     = "FEDAVG_"
	envPrefixHTTP = "FEDAVG_HTTP_"
	pathEnv       = ".env"
)

type envConfig struct {
	LogLevel   string  `env:"FEDAVG_LOG_LEVEL"   envDefault:"info"`
	InstanceID string  `env:"FEDAVG_INSTANCE_ID"`
	ConfigFile string  `env:"FEDAVG_CONFIG_FILE" envDefault:"config.toml"`
	OTELURL    url.URL `env:"FEDAVG_OTEL_URL"`
	TraceRatio float64 `env:"FEDAVG_TRACE_RATIO" envDefault:"0"`
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

	fileCfg := &fedavg.Config{}
	if _, err := os.Stat(cfg.ConfigFile); err == nil {
		fileCfg, err = fedavg.LoadConfig(cfg.ConfigFile)
		if err != nil {
			logger.Error("failed to load config file", slog.String("path", cfg.ConfigFile), slog.Any("error", err))

			return
		}
	}

	mqttCfg := mqtt.Config{}
	if err := env.ParseWithOptions(&mqttCfg, env.Options{Prefix: envPrefix}); err != nil {
		logger.Error("failed to load mqtt configuration", slog.Any("error", err))

		return
	}
	overrideMQTT(&mqttCfg, fileCfg.MQTT)

	storageCfg := storage.Config{}
	if err := env.ParseWithOptions(&storageCfg, env.Options{Prefix: envPrefix}); err != nil {
		logger.Error("failed to load storage configuration", slog.Any("error", err))

		return
	}

	var tp trace.TracerProvider
	switch {
	case cfg.OTELURL == (url.URL{}):
		tp = noop.NewTracerProvider()
	default:
		sdktp, err := jaeger.NewProvider(ctx, svcName, cfg.OTELURL, cfg.InstanceID, cfg.TraceRatio)
		if err != nil {
			logger.Error("failed to initialize opentelemetry", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if err := sdktp.Shutdown(ctx); err != nil {
				logger.Error("error shutting down tracer provider", slog.Any("error", err))
			}
		}()
		tp = sdktp
	}
	tracer := tp.Tracer(svcName)

	baseTopic := mqtt.BaseTopic(mqttCfg.DomainID, mqttCfg.ChannelID)
	svcCfg, err := fileCfg.Strategy.StrategyConfig(baseTopic)
	if err != nil {
		logger.Error("invalid strategy configuration", slog.Any("error", err))

		return
	}

	checkpoints, closer, err := storage.New[strategy.Checkpoint](storageCfg, "checkpoints")
	if err != nil {
		logger.Error("failed to initialize storage", slog.Any("error", err))

		return
	}
	if closer != nil {
		defer closer.Close()
	}

	pubsub, err := mqtt.NewPubSub(mqttCfg, svcName+"-"+cfg.InstanceID, logger)
	if err != nil {
		logger.Error("failed to initialize mqtt pubsub", slog.String("error", err.Error()))

		return
	}
	defer func() {
		if err := pubsub.Disconnect(context.Background()); err != nil {
			logger.Error("failed to disconnect mqtt pubsub", slog.Any("error", err))
		}
	}()

	svc := strategy.NewService(
		svcCfg,
		client.NewManager(),
		client.NewMQTTTransport(pubsub, baseTopic),
		serde.NewRegistry(),
		fl.NewFedAvgAggregator(),
		checkpoints,
		pubsub,
		logger,
	)
	svc = middleware.Logging(logger, svc)
	svc = middleware.Tracing(tracer, svc)
	counter, latency := prometheus.MakeMetrics(svcName, "api")
	svc = middleware.Metrics(counter, latency, svc)

	if err := svc.Subscribe(ctx); err != nil {
		logger.Error("failed to subscribe to strategy channel", slog.String("error", err.Error()))

		return
	}

	httpServerConfig := server.Config{Port: defHTTPPort}
	if err := env.ParseWithOptions(&httpServerConfig, env.Options{Prefix: envPrefixHTTP}); err != nil {
		logger.Error(fmt.Sprintf("failed to load %s HTTP server configuration : %s", svcName, err.Error()))

		return
	}

	hs := httpserver.NewServer(ctx, cancel, svcName, httpServerConfig, api.MakeHandler(svc, logger, cfg.InstanceID), logger)

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, svcName, hs)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", svcName, err))
	}
}

// overrideMQTT fills credentials missing from the environment with the ones
// from the config file.
func overrideMQTT(cfg *mqtt.Config, file fedavg.MQTTConfig) {
	if cfg.ClientID == "" {
		cfg.ClientID = file.ClientID
	}
	if cfg.ClientKey == "" {
		cfg.ClientKey = file.ClientKey
	}
	if cfg.DomainID == "" {
		cfg.DomainID = file.DomainID
	}
	if cfg.ChannelID == "" {
		cfg.ChannelID = file.ChannelID
	}
}
