package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opsgridstack/opsgrid-orchestrator/internal/act"
	"github.com/opsgridstack/opsgrid-orchestrator/internal/api"
	"github.com/opsgridstack/opsgrid-orchestrator/internal/collect"
	"github.com/opsgridstack/opsgrid-orchestrator/internal/config"
	"github.com/opsgridstack/opsgrid-orchestrator/internal/engine"
	"github.com/opsgridstack/opsgrid-orchestrator/internal/escalation"
	"github.com/opsgridstack/opsgrid-orchestrator/internal/history"
	"github.com/opsgridstack/opsgrid-orchestrator/internal/metrics"
	"github.com/opsgridstack/opsgrid-orchestrator/internal/reason"
	"github.com/opsgridstack/opsgrid-orchestrator/internal/services"
	"github.com/opsgridstack/opsgrid-orchestrator/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting opsgrid-orchestrator",
		slog.String("address", cfg.Server.Address),
		slog.String("mode", cfg.Collaborators.Mode))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var (
		collector engine.Collector
		reasoner  engine.Reasoner
	)
	switch cfg.Collaborators.Mode {
	case config.ModeLive:
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(cfg.Collaborators.AWS.Region))
		if err != nil {
			logger.Error("failed to load AWS config", slog.Any("error", err))
			os.Exit(1)
		}
		collector = collect.NewAWSCollector(awsCfg, cfg.Collaborators.AWS.MaxFindings, logger)
		reasoner = reason.NewBedrockReasoner(awsCfg, cfg.Collaborators.AWS.ModelID, logger)
	default:
		collector = collect.NewFixtureCollector()
		reasoner = reason.NewFixtureReasoner()
	}

	playbooks, err := act.LoadPlaybooks(cfg.Pipeline.PlaybookPath)
	if err != nil {
		logger.Error("failed to load playbooks", slog.Any("error", err))
		os.Exit(1)
	}
	executor := act.NewPlaybookExecutor(playbooks, logger)

	queue := escalation.NewQueue(logger)
	store := history.NewStore(cfg.Pipeline.HistoryCapacity)
	policy := engine.NewRoutingPolicy(cfg.Pipeline.AutoRemediateThreshold, cfg.Pipeline.AllowedActions)
	orchestrator := engine.NewOrchestrator(logger, collector, reasoner, executor, policy,
		queue, store, cfg.Pipeline.AnalysisTimeout)
	svc := services.NewPipelineService(logger, orchestrator, collector, queue, store)

	server, err := api.NewServer(cfg.Server, svc, logger)
	if err != nil {
		logger.Error("failed to create HTTP server", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		logger.Info("api server listening", slog.String("address", server.Address()))
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("api server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("opsgrid-orchestrator stopped")
}
