package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"survey-dashboard-service/internal/config"
	"survey-dashboard-service/internal/domain"
	"survey-dashboard-service/internal/events"
	transport "survey-dashboard-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the dashboard server and the cache invalidation consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	svc, err := buildServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	ps, err := events.NewPubSub(events.Options{
		Brokers:       cfg.Events.Brokers,
		ConsumerGroup: cfg.Events.ConsumerGroup,
	}, events.NewLoggerAdapter(logger))
	if err != nil {
		return err
	}
	defer ps.Close()

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	invalidator := events.NewCacheInvalidator(ps.Subscriber, svc.reports, cfg.Events.Topic, logger)
	go func() {
		if err := invalidator.Run(consumerCtx); err != nil {
			logger.Error("cache invalidation consumer stopped", zap.Error(err))
		}
	}()
	publisher := events.NewPublisher(ps.Publisher, cfg.Events.Topic)

	wsHandler := transport.NewWSHandler(svc.reports, svc.trackers, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.HandleFunc("/events/answers-scored", answersScoredHandler(publisher, logger))

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting survey dashboard service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// answersScoredHandler lets the ingest side announce new answers for a tenant.
func answersScoredHandler(publisher *events.Publisher, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		tenantID, err := strconv.ParseInt(r.URL.Query().Get("tenantId"), 10, 64)
		if err != nil || tenantID <= 0 {
			http.Error(w, "missing or invalid tenantId", http.StatusBadRequest)
			return
		}
		evt := events.AnswersScored{
			TenantID:   tenantID,
			ModuleType: domain.ModuleType(r.URL.Query().Get("module")),
			ScoredAt:   time.Now().UTC(),
		}
		if err := publisher.AnswersScored(r.Context(), evt); err != nil {
			logger.Warn("publish answers scored failed", zap.Int64("tenant", tenantID), zap.Error(err))
			http.Error(w, "publish failed", http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}
