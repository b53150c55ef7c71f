package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
	"go.uber.org/zap"

	"github.com/xela07ax/approvalbot/internal/bot"
	"github.com/xela07ax/approvalbot/internal/console/handler"
	"github.com/xela07ax/approvalbot/internal/console/server"
	consoleservice "github.com/xela07ax/approvalbot/internal/console/service"
	"github.com/xela07ax/approvalbot/internal/gateway"
	"github.com/xela07ax/approvalbot/internal/infra"
	"github.com/xela07ax/approvalbot/internal/infra/auth"
	"github.com/xela07ax/approvalbot/internal/repository/memory"
	"github.com/xela07ax/approvalbot/internal/repository/redisarchive"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	// Контекст для управления жизненным циклом фоновых горутин
	appCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Хранилище заявок: источник правды — память процесса,
	// Redis (если сконфигурирован) несет архив с TTL и Pub/Sub решений
	store := memory.NewStore()

	var archive bot.Archive
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		pingCtx, cancel := context.WithTimeout(appCtx, 5*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			cancel()
			logger.Fatal("redis unreachable", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		cancel()

		archive = redisarchive.New(rdb, cfg.Redis.ArchiveTTL)
		logger.Info("redis archive enabled", zap.Duration("ttl", cfg.Redis.ArchiveTTL))
	}

	// 3. Метрики
	reg := prometheus.NewRegistry()
	metrics := bot.NewMetrics(reg)

	// 4. Gateway: Slack клиент + обертка надежности (Retries/CB/RateLimit)
	api := slack.New(cfg.Slack.BotToken, slack.OptionAppLevelToken(cfg.Slack.AppToken))
	gw := gateway.New(api, logger)
	safeGw := gateway.NewReliableMessenger(gw, cfg.Bot, logger, func(open bool) {
		if open {
			metrics.CircuitBreakerState.Set(1)
		} else {
			metrics.CircuitBreakerState.Set(0)
		}
	})

	// 5. Ядро: контроллер жизненного цикла + диспетчер Socket Mode
	service := bot.NewService(store, archive, metrics, logger, cfg.Bot.EnforceApprover)

	smc := socketmode.New(api)
	dispatcher := bot.NewDispatcher(smc, safeGw, service, metrics, logger, cfg.Slack.SlashCommand)

	// 6. Консоль: health + /metrics всегда, админка только при наличии ключей
	var validator auth.TokenValidator
	var authH *handler.AuthHandler
	if len(cfg.Auth.PublicKey) > 0 && len(cfg.Auth.PrivateKey) > 0 {
		pubKey, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
		if err != nil {
			logger.Fatal("failed to parse console public key", zap.Error(err))
		}
		privKey, err := auth.ParseRSAPrivateKey(cfg.Auth.PrivateKey)
		if err != nil {
			logger.Fatal("failed to parse console private key", zap.Error(err))
		}

		validator = auth.NewBaseValidator(pubKey)
		authH = handler.NewAuthHandler(consoleservice.NewAuthService(cfg.Auth, privKey))
	}

	consoleSrv := server.NewConsoleServer(
		logger,
		validator,
		authH,
		handler.NewApprovalHandler(service),
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      consoleSrv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("http server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 7. Socket Mode
	dispatcherErr := make(chan error, 1)
	go func() {
		dispatcherErr <- dispatcher.Run(appCtx)
	}()
	logger.Info("approval bot started", zap.String("command", cfg.Slack.SlashCommand))

	select {
	case <-appCtx.Done():
	case err := <-dispatcherErr:
		if err != nil && appCtx.Err() == nil {
			logger.Error("socket mode stopped", zap.Error(err))
		}
	}

	logger.Info("approval bot stopping...")

	// Даем 5 секунд на завершение запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	logger.Info("approval bot exited properly")
}
