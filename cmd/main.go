package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dracko000/meet/config"
	"github.com/Dracko000/meet/internal/events"
	"github.com/Dracko000/meet/internal/history"
	"github.com/Dracko000/meet/internal/logger"
	"github.com/Dracko000/meet/internal/metrics"
	"github.com/Dracko000/meet/internal/postgres"
	"github.com/Dracko000/meet/internal/redisstore"
	"github.com/Dracko000/meet/internal/registry"
	"github.com/Dracko000/meet/internal/relay"
	"github.com/Dracko000/meet/internal/service"
	grpcx "github.com/Dracko000/meet/internal/transport/grpc"
	httpx "github.com/Dracko000/meet/internal/transport/http"
	"github.com/Dracko000/meet/internal/transport/ws"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:          "meet",
		Short:        "Signaling broker for peer-to-peer video rooms",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (default $CONFIG_PATH or "+config.DefaultPath+")")
	return cmd
}

// sink receives lifecycle events both from the registry and the relay.
type sink interface {
	events.Publisher
	registry.Observer
}

type roomLog struct{}

func (roomLog) RoomCreated(id string) { slog.Debug("room created", "room", id) }
func (roomLog) RoomRemoved(id string) { slog.Debug("room reclaimed", "room", id) }

func run(ctx context.Context, configPath string) error {
	// --- config ---
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	logger.Init(logger.Config{
		Env:       logger.ParseEnv(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		Level:     level,
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	defer func() { _ = logger.Sync() }()
	slog.Info("starting meet",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version, "storage", cfg.Storage.Backend)

	// --- tracing: ids for log correlation, no exporter ---
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	// --- metrics ---
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promReg)

	// --- events ---
	var pub sink = events.Nop{}
	if cfg.NATS.URL != "" {
		n, err := events.Connect(cfg.NATS.URL, cfg.Logging.Service, cfg.NATS.Prefix)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = n.Close() }()
		pub = n
		slog.Info("publishing room events", "url", cfg.NATS.URL, "prefix", cfg.NATS.Prefix)
	}

	// --- chat history ---
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	// --- broker ---
	rooms := registry.New(
		registry.WithMaxRooms(cfg.Broker.MaxRooms),
		registry.WithMaxParticipants(cfg.Broker.MaxParticipants),
		registry.WithObserver(m),
		registry.WithObserver(pub),
		registry.WithObserver(roomLog{}),
	)
	rl := relay.New(rooms, store,
		relay.WithMetrics(m),
		relay.WithPublisher(pub),
		relay.WithMaxBodyLen(cfg.Broker.MaxBodyLen),
	)

	// --- services ---
	roomSvc, err := service.NewRoomService(rooms)
	if err != nil {
		return err
	}
	memberSvc := service.NewMemberService(rooms, pub)
	chatSvc := service.NewChatService(rl, store)

	// --- WS ---
	wsServer := ws.NewServer(memberSvc, chatSvc, m, ws.Options{
		ReadLimit:  cfg.WS.ReadLimit,
		PongWait:   cfg.WS.PongWaitDuration(),
		WriteWait:  cfg.WS.WriteWaitDuration(),
		SendBuffer: cfg.WS.SendBuffer,
		RateLimit:  cfg.WS.RateLimit,
		RateBurst:  cfg.WS.RateBurst,
	})

	// --- HTTP ---
	handler := httpx.NewHandler(roomSvc, chatSvc, clientConfig(cfg))
	router := httpx.NewRouter(httpx.RouterDeps{
		Handler:        handler,
		WS:             wsServer.HandleWS,
		Metrics:        m,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})
	readTimeout, writeTimeout, idleTimeout := cfg.HTTP.Timeouts()
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	// --- gRPC ---
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcx.UnaryServerInterceptor(10*time.Second)),
		grpc.ChainStreamInterceptor(grpcx.StreamServerInterceptor()),
	)
	grpcx.Register(grpcServer, grpcx.NewServer(roomSvc, chatSvc))

	// --- run both servers ---
	errCh := make(chan error, 2)

	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if cfg.GRPC.Addr != "" {
		go func() {
			lis, err := net.Listen("tcp", cfg.GRPC.Addr)
			if err != nil {
				errCh <- err
				return
			}
			slog.Info("grpc listen", "addr", cfg.GRPC.Addr)
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- err
			}
		}()
	}

	// --- graceful shutdown ---
	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal")
	case runErr = <-errCh:
		slog.Error("server error", "err", runErr)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpSrv.Shutdown(ctxShutdown)
	wsServer.Shutdown()
	grpcServer.GracefulStop()
	slog.Info("stopped", "live_rooms", roomSvc.LiveRooms())
	return runErr
}

func openStore(ctx context.Context, cfg *config.Config) (history.Store, error) {
	switch cfg.Storage.Backend {
	case "postgres":
		pool, err := postgres.NewPool(ctx, postgres.Config{
			DSN:             cfg.Storage.Postgres.DSN,
			MaxConns:        cfg.Storage.Postgres.MaxConns,
			ApplicationName: cfg.Logging.Service,
		})
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if cfg.Storage.Postgres.Migrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("postgres migrate: %w", err)
			}
		}
		return closingStore{Store: postgres.NewChatRepository(pool), close: pool.Close}, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		return redisstore.New(client, cfg.Storage.Redis.Prefix), nil

	default:
		return history.NewMemory(), nil
	}
}

// closingStore releases a resource the store borrows but does not own.
type closingStore struct {
	history.Store
	close func()
}

func (s closingStore) Close() error {
	err := s.Store.Close()
	s.close()
	return err
}

func clientConfig(cfg *config.Config) httpx.ClientConfig {
	servers := make([]httpx.ICEServer, 0, len(cfg.ICE.Servers))
	for _, s := range cfg.ICE.Servers {
		servers = append(servers, httpx.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return httpx.ClientConfig{
		ICEServers:      servers,
		MaxParticipants: cfg.Broker.MaxParticipants,
		MaxBodyLen:      cfg.Broker.MaxBodyLen,
	}
}
