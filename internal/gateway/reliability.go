package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/slack-go/slack"
	"github.com/sony/gobreaker"
	"github.com/xela07ax/approvalbot/internal/infra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Messenger — то, что нужно диспетчеру от Gateway.
type Messenger interface {
	OpenApprovalModal(ctx context.Context, triggerID string) error
	SendMessage(ctx context.Context, recipientID, text string, blocks ...slack.Block) error
}

// ReliableMessenger оборачивает исходящие вызовы Slack в клиентский
// rate limiter, circuit breaker и ретраи с бэкоффом.
type ReliableMessenger struct {
	next     Messenger
	cb       *gobreaker.CircuitBreaker
	limiter  *rate.Limiter
	attempts uint
	timeout  time.Duration
}

func NewReliableMessenger(next Messenger, cfg infra.BotConfig, logger *zap.Logger, onCBChange func(open bool)) *ReliableMessenger {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "slack-messenger",
		MaxRequests: cfg.CBMaxRequests,
		Interval:    cfg.CBInterval,
		Timeout:     cfg.CBTimeout, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Если более 5 ошибок подряд — открываемся (блокируем трафик)
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			if onCBChange != nil {
				onCBChange(to == gobreaker.StateOpen)
			}
		},
	})

	limiter := rate.NewLimiter(rate.Limit(cfg.SendRate), cfg.SendBurst)

	return &ReliableMessenger{
		next:     next,
		cb:       cb,
		limiter:  limiter,
		attempts: cfg.SendAttempts,
		timeout:  cfg.SendTimeout,
	}
}

// OpenApprovalModal идет напрямую: trigger_id истекает за секунды,
// ретраи и ожидание лимитера тут только навредят.
func (m *ReliableMessenger) OpenApprovalModal(ctx context.Context, triggerID string) error {
	return m.next.OpenApprovalModal(ctx, triggerID)
}

func (m *ReliableMessenger) SendMessage(ctx context.Context, recipientID, text string, blocks ...slack.Block) error {
	// 1. Rate Limiter
	if err := m.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit exceeded: %w", err)
	}

	// 2. Circuit Breaker
	_, err := m.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(m.attempts),
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Slack вернул 429 — уважаем Retry-After
				var rlErr *slack.RateLimitedError
				if errors.As(err, &rlErr) {
					return rlErr.RetryAfter
				}

				// В остальных случаях (сетевой лаг, 500-ка) — экспоненциальный бэкофф
				return retry.BackOffDelay(n, err, config)
			}),
		)

		retryErr := r.Do(func() error {
			tCtx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()

			return m.next.SendMessage(tCtx, recipientID, text, blocks...)
		})

		return nil, retryErr
	})

	return err
}
