package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthanhphan/gosdk/logger"
	"github.com/redis/go-redis/v9"

	httpHandler "github.com/khanhng-dev/gridstore/internal/adapter/inbound/http"
	"github.com/khanhng-dev/gridstore/internal/adapter/outbound/badgerstore"
	"github.com/khanhng-dev/gridstore/internal/config"
	"github.com/khanhng-dev/gridstore/internal/service"
	"github.com/khanhng-dev/gridstore/pkg/idgen"
)

type App struct {
	cfg     *config.Config
	store   *badgerstore.Store
	server  *httpHandler.Server
	sweeper *service.Sweeper
}

func New(configPath string) (*App, error) {
	// 1. Load Config
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Initialize Logger
	logger.InitLogger(&cfg.Logger)

	// 3. Snowflake IDGen on a Redis clock (degrades to system clock
	// when Redis is unreachable).
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	idGen, err := idgen.New(cfg.App.NodeID, idgen.NewRedisClock(redisClient))
	if err != nil {
		return nil, fmt.Errorf("failed to init snowflake: %w", err)
	}

	// 4. Durable store. A store that cannot open is fatal: the process
	// cannot serve anything without it.
	store, err := badgerstore.Open(badgerstore.Config{
		DataDir:    cfg.Badger.DataDir,
		SyncWrites: cfg.Badger.SyncWrites,
	})
	if err != nil {
		return nil, err
	}

	catalog := badgerstore.NewCatalog(store, idGen)
	chunks := badgerstore.NewChunkStore(store, cfg.App.Compression, cfg.App.DeleteWorkers)

	// 5. Services
	svc := service.NewFileService(cfg, catalog, chunks)
	sweeper := service.NewSweeper(
		catalog,
		chunks,
		time.Duration(cfg.Sweep.IntervalSeconds)*time.Second,
		time.Duration(cfg.Sweep.PendingGraceSeconds)*time.Second,
	)

	// 6. HTTP Server
	httpServer := httpHandler.NewServer(cfg, svc)

	return &App{
		cfg:     cfg,
		store:   store,
		server:  httpServer,
		sweeper: sweeper,
	}, nil
}

func (a *App) Run() error {
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	go a.sweeper.Start(sweepCtx)

	logger.Infow("File storage service starting", "addr", a.cfg.Server.Addr, "data_dir", a.cfg.Badger.DataDir)
	serverErrCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			serverErrCh <- err
		}
	}()

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	var runErr error
	select {
	case sig := <-stop:
		logger.Infow("Shutdown signal received", "signal", sig.String())
	case err := <-serverErrCh:
		runErr = fmt.Errorf("http server failed: %w", err)
		logger.Errorw("Server exited unexpectedly", "error", err.Error())
	}

	logger.Info("Shutting down")
	stopSweeper()
	if err := a.server.Stop(context.Background()); err != nil {
		logger.Errorw("Server shutdown error", "error", err.Error())
		if runErr == nil {
			runErr = err
		}
	}
	if err := a.store.Close(); err != nil {
		logger.Errorw("Store close error", "error", err.Error())
		if runErr == nil {
			runErr = err
		}
	}

	return runErr
}
