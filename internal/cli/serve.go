package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/rl1809/procurematch/internal/adapter/handler"
	"github.com/rl1809/procurematch/internal/adapter/realtime"
	"github.com/rl1809/procurematch/internal/adapter/storage"
	"github.com/rl1809/procurematch/internal/config"
	"github.com/rl1809/procurematch/internal/core/domain"
	"github.com/rl1809/procurematch/internal/core/matching"
	"github.com/rl1809/procurematch/internal/core/service"
	"github.com/rl1809/procurematch/internal/metrics"
	"github.com/rl1809/procurematch/internal/worker"
)

const shutdownTimeout = 5 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP, gRPC and websocket API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootOpts.Config)
			if err != nil {
				return err
			}
			log, err := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv, err := NewServer(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer srv.Close()

			return srv.Run(ctx)
		},
	}
}

// Server owns the Store and everything wired around it.
type Server struct {
	cfg config.Config
	log logrus.FieldLogger

	store   *service.Store
	metrics *metrics.Metrics
	hub     *realtime.Hub
	journal *worker.Journal
	db      *sql.DB
	rdb     *redis.Client

	http *http.Server
	grpc *grpc.Server
}

// NewServer connects the configured backends and builds the Store. Redis and
// the SQL journal are optional; without them state stays in process.
func NewServer(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (srv *Server, err error) {
	log = log.WithField("module", "server")

	regions, err := matching.RegionMatcherByName(cfg.RegionMatching)
	if err != nil {
		return nil, err
	}
	transitions, err := domain.TransitionPolicyByName(cfg.OrderTransitions)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		log:     log,
		metrics: metrics.New(),
		hub:     realtime.NewHub(log),
	}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	opts := []service.Option{
		service.WithEngine(matching.NewEngine(matching.WithRegionMatcher(regions))),
		service.WithTransitionPolicy(transitions),
		service.WithRecorder(s.metrics),
		service.WithLogger(log),
	}
	publishers := service.Publishers{s.hub}

	if cfg.Database.DSN != "" {
		s.db, err = storage.OpenDB(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		journal := storage.NewSQLJournal(s.db, cfg.Database.Driver)
		if err := journal.Migrate(ctx); err != nil {
			return nil, err
		}
		s.journal = worker.NewJournal(journal, cfg.Journal.Workers, cfg.Journal.QueueSize, log,
			worker.WithRecorder(s.metrics))
		s.journal.Start()
		publishers = append(publishers, s.journal)
		log.WithField("driver", cfg.Database.Driver).Info("order journal enabled")
	}

	switch {
	case cfg.Redis.Addr != "":
		s.rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, PoolSize: 100})
		if err := s.rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		shared := storage.NewRedisAdapter(s.rdb, storage.WithSessionKey(cfg.Redis.SessionKey))
		opts = append(opts,
			service.WithSessionRepository(shared),
			service.WithAcceptanceGuard(shared),
			service.WithLocker(storage.NewRedisLocker(s.rdb, cfg.Redis.LockTTL)),
		)
		log.WithField("addr", cfg.Redis.Addr).Info("connected to redis")
	case cfg.Session.File != "":
		opts = append(opts, service.WithSessionRepository(storage.NewFileSession(cfg.Session.File)))
	}

	opts = append(opts, service.WithEventPublisher(publishers))
	s.store = service.NewStore(opts...)

	if user, err := s.store.LoadSession(ctx); err != nil {
		log.WithError(err).Warn("session not restored")
	} else if user != nil {
		log.WithField("user", user.Name).Info("session restored")
	}

	s.http = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.NewHTTPHandler(s.store, cfg.Currency, log).Router(s.metrics.Handler(), s.hub),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.grpc = grpc.NewServer(grpc.UnaryInterceptor(logUnary(log)))
	handler.RegisterMatchingServer(s.grpc, handler.NewGRPCHandler(s.store, cfg.Currency, log))

	return s, nil
}

func (s *Server) Store() *service.Store { return s.store }

// Handler is the HTTP API, for serving without Run.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Run serves HTTP and gRPC until ctx is done or either listener fails, then
// shuts both down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", s.cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}
	grpcLis, err := net.Listen("tcp", s.cfg.GRPCAddr)
	if err != nil {
		httpLis.Close()
		return fmt.Errorf("listen grpc: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		s.log.WithField("addr", grpcLis.Addr().String()).Info("gRPC server listening")
		if err := s.grpc.Serve(grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	go func() {
		s.log.WithField("addr", httpLis.Addr().String()).Info("HTTP server listening")
		if err := s.http.Serve(httpLis); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	s.log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		s.log.WithError(err).Warn("HTTP shutdown")
	}
	s.log.Info("HTTP server stopped")

	s.grpc.GracefulStop()
	s.log.Info("gRPC server stopped")

	return runErr
}

// Close stops the websocket hub, drains the journal workers and closes the
// backend connections. Safe to call on a partially built Server.
func (s *Server) Close() {
	if s.hub != nil {
		s.hub.Close()
	}
	if s.journal != nil {
		s.journal.Close()
		s.journal = nil
		s.log.Info("journal workers stopped")
	}
	if s.rdb != nil {
		s.rdb.Close()
		s.rdb = nil
	}
	if s.db != nil {
		s.db.Close()
		s.db = nil
	}
	s.log.Info("connections closed")
}

func logUnary(log logrus.FieldLogger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		entry := log.WithFields(logrus.Fields{
			"method":   info.FullMethod,
			"duration": time.Since(start).String(),
		})
		if err != nil {
			entry.WithError(err).Warn("gRPC call failed")
		} else {
			entry.Debug("gRPC call")
		}
		return resp, err
	}
}
