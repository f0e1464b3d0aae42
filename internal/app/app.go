package app

//импорт пакетов и библиотек
import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"jewelry_checkout/internal/broker"
	"jewelry_checkout/internal/config"
	"jewelry_checkout/internal/gateway"
	"jewelry_checkout/internal/metrics"
	"jewelry_checkout/internal/server"
	"jewelry_checkout/internal/session"
	"jewelry_checkout/internal/storage"

	"github.com/go-playground/validator/v10"
)

// основная структура нашего приложения, которая содержит все зависимости
type App struct {
	cfg           *config.Config
	db            *storage.Storage
	sessions      *session.Manager
	consumer      *broker.MessageConsumer
	httpServer    *http.Server
	metricsServer *http.Server
	mainCtx       context.Context
	mainCancel    context.CancelFunc
}

// Создание и инициализация нового экземпляра App
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// 1. подключение к базе данных
	dbPool, err := storage.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	dbStorage := storage.NewStorage(dbPool)

	// 2. инициализация кэша активных сессий
	shardCapacity := cfg.SessionCapacity / cfg.SessionNumShards
	if shardCapacity < 1 {
		shardCapacity = 1
	}
	sessionCache := session.NewShardedCache(shardCapacity, cfg.SessionNumShards)
	sessions := session.NewManager(sessionCache)
	slog.Info("Session cache initialized",
		"total_capacity_approx", cfg.SessionCapacity,
		"shards", cfg.SessionNumShards,
		"capacity_per_shard", shardCapacity,
	)

	// 3. симулируемый платежный шлюз с настроенными задержками и отказами
	sim := gateway.NewSimulator(gateway.SimulatorConfig{
		Latency:        cfg.GatewayLatency,
		CardFailRate:   cfg.CardFailRate,
		StripeFailRate: cfg.StripeFailRate,
		PayPalFailRate: cfg.PayPalFailRate,
		UploadFailRate: cfg.UploadFailRate,
	}, nil)

	// 4. инициализация остальных компонентов
	appMetrics := metrics.NewMetrics()
	validate := validator.New()
	consumer := broker.NewMessageConsumer(
		cfg.KafkaBrokers,
		sessions,
		appMetrics,
		validate,
	)

	// 5. Настройка HTTP сервера
	mainServer := server.NewServer(sessions, sim, sim, appMetrics, dbStorage, validate)
	srv := &http.Server{
		Addr:    cfg.HTTPPort,
		Handler: mainServer.Router,
	}

	// 6. Настраиваем сервер метрик
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	metricsSrv := &http.Server{
		Addr:    cfg.MetricsPort,
		Handler: metricsMux,
	}

	// 7. Создаем основной контекст приложения
	mainCtx, mainCancel := context.WithCancel(context.Background())

	return &App{
		cfg:           cfg,
		db:            dbStorage,
		sessions:      sessions,
		consumer:      consumer,
		httpServer:    srv,
		metricsServer: metricsSrv,
		mainCtx:       mainCtx,
		mainCancel:    mainCancel,
	}, nil
}

// Запуск все долгоживущих процессов(серверы, консьюмеры)
func (a *App) Run() {

	go a.startMetricsServer()
	go a.startHTTPServer()
	go a.startKafkaConsumer()

	slog.Info("Service is running. Press Ctrl+C to exit.")

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-shutdownChan:
		slog.Info("Received shutdown signal.")
	case <-a.mainCtx.Done():
		slog.Warn("Shutting down due to critical error (context cancelled).")
	}

	slog.Info("Shutting down gracefully...")
	a.Shutdown()
}

// startMetricsServer запускает HTTP-сервер для эндпоинта /metrics
func (a *App) startMetricsServer() {
	slog.Info("Starting metrics server", "address", a.cfg.MetricsPort)
	if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Failed to start metrics server", "error", err)
		a.mainCancel()
	}
}

// startHTTPServer запускает основной HTTP-сервер приложения
func (a *App) startHTTPServer() {
	slog.Info("Starting HTTP server", "address", a.cfg.HTTPPort)
	if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Failed to start HTTP server", "error", err)
		a.mainCancel()
	}
}

// startKafkaConsumer запускает главный цикл консьюмера
func (a *App) startKafkaConsumer() {
	slog.Info("Starting Kafka consumer loop...")
	a.consumer.StartConsuming(a.mainCtx, a.mainCancel)
	slog.Info("Kafka consumer loop stopped.")
}

// Shutdown останавливает все компоненты приложения
func (a *App) Shutdown() {
	a.mainCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("Metrics server shutdown error", "error", err)
		}
	}()

	go func() {
		defer wg.Done()
		a.consumer.Close()
	}()

	go func() {
		defer wg.Done()
		a.db.Close()
	}()

	wg.Wait()
}
