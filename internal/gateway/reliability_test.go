package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/approvalbot/internal/infra"
	"go.uber.org/zap"
)

type flakyMessenger struct {
	mu       sync.Mutex
	calls    int
	modals   int
	failures int   // сколько первых вызовов SendMessage должны упасть
	err      error // чем именно падать
}

func (m *flakyMessenger) OpenApprovalModal(ctx context.Context, triggerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modals++
	return nil
}

func (m *flakyMessenger) SendMessage(ctx context.Context, recipientID, text string, blocks ...slack.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.calls <= m.failures {
		return m.err
	}
	return nil
}

func (m *flakyMessenger) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Конфиг с высоким лимитом: лимитер и таймауты не должны мешать ретраям
func testBotConfig() infra.BotConfig {
	return infra.BotConfig{
		SendRate:      1000,
		SendBurst:     100,
		SendAttempts:  3,
		SendTimeout:   time.Second,
		CBMaxRequests: 1,
		CBInterval:    time.Minute,
		CBTimeout:     time.Minute,
	}
}

// Slack вернул 429: пауза между попытками берется из Retry-After,
// а не из экспоненциального бэкоффа (его базовая задержка 100ms —
// две такие паузы не уложились бы в порог ниже).
func TestSendMessageHonorsRetryAfter(t *testing.T) {
	next := &flakyMessenger{
		failures: 2,
		err:      &slack.RateLimitedError{RetryAfter: 5 * time.Millisecond},
	}
	m := NewReliableMessenger(next, testBotConfig(), zap.NewNop(), nil)

	start := time.Now()
	err := m.SendMessage(context.Background(), "U_APP", "hello")
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, 3, next.callCount())
	assert.Less(t, elapsed, 100*time.Millisecond)
}

// Обычная ошибка: все попытки исчерпаны, ошибка уходит наверх.
func TestSendMessageExhaustsAttempts(t *testing.T) {
	next := &flakyMessenger{
		failures: 100,
		err:      errors.New("slack is down"),
	}
	m := NewReliableMessenger(next, testBotConfig(), zap.NewNop(), nil)

	err := m.SendMessage(context.Background(), "U_APP", "hello")

	require.Error(t, err)
	assert.Equal(t, 3, next.callCount())
}

// Шестая ошибка подряд выбивает автомат: трафик блокируется без
// похода в Slack, колбэк состояния получает open=true.
func TestSendMessageCircuitBreakerOpens(t *testing.T) {
	next := &flakyMessenger{
		failures: 100,
		err:      errors.New("slack is down"),
	}

	var mu sync.Mutex
	var states []bool
	cfg := testBotConfig()
	cfg.SendAttempts = 1
	m := NewReliableMessenger(next, cfg, zap.NewNop(), func(open bool) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, open)
	})

	for i := 0; i < 6; i++ {
		require.Error(t, m.SendMessage(context.Background(), "U_APP", "hello"))
	}
	assert.Equal(t, 6, next.callCount())

	err := m.SendMessage(context.Background(), "U_APP", "hello")
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	// Вызов погашен автоматом, до Slack не дошел
	assert.Equal(t, 6, next.callCount())

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, states)
	assert.True(t, states[len(states)-1])
}

// Модалка идет мимо обертки: trigger_id живет секунды.
func TestOpenApprovalModalPassthrough(t *testing.T) {
	next := &flakyMessenger{}
	m := NewReliableMessenger(next, testBotConfig(), zap.NewNop(), nil)

	require.NoError(t, m.OpenApprovalModal(context.Background(), "trig-1"))
	assert.Equal(t, 1, next.modals)
}
