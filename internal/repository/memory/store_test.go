package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/approvalbot/internal/domain"
)

func newRequest(id string) *domain.ApprovalRequest {
	return &domain.ApprovalRequest{
		ID:          id,
		RequesterID: "U_REQ",
		ApproverID:  "U_APP",
		Details:     "Need laptop budget approval",
		Status:      domain.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	req := newRequest("r1")
	require.NoError(t, s.Create(ctx, req))
	assert.Equal(t, 1, s.Len())

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, req, got)

	// Повторные чтения без Decide между ними идентичны
	again, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, got, again)

	// Дубликат ID не проходит
	assert.Error(t, s.Create(ctx, newRequest("r1")))
	assert.Equal(t, 1, s.Len())
}

func TestGetNotFound(t *testing.T) {
	s := NewStore()
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDecide(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.Create(ctx, newRequest("r1")))

	rec, err := s.Decide(ctx, "r1", "U_APP", domain.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, rec.Status)
	require.NotNil(t, rec.DecidedBy)
	assert.Equal(t, "U_APP", *rec.DecidedBy)
	require.NotNil(t, rec.DecidedAt)

	// Второе решение (даже с другим исходом) отклоняется, статус не трогается
	_, err = s.Decide(ctx, "r1", "U_APP", domain.StatusRejected)
	assert.ErrorIs(t, err, domain.ErrAlreadyDecided)

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, got.Status)
}

func TestDecideNotFound(t *testing.T) {
	s := NewStore()
	_, err := s.Decide(context.Background(), "missing", "U_APP", domain.StatusApproved)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 0, s.Len())
}

// Два одновременных клика по одной заявке: ровно один переход принимается.
func TestDecideConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.Create(ctx, newRequest("r1")))

	outcomes := []domain.ApprovalStatus{domain.StatusApproved, domain.StatusRejected}
	errs := make([]error, len(outcomes))

	var wg sync.WaitGroup
	for i, next := range outcomes {
		wg.Add(1)
		go func(i int, next domain.ApprovalStatus) {
			defer wg.Done()
			_, errs[i] = s.Decide(ctx, "r1", "U_APP", next)
		}(i, next)
	}
	wg.Wait()

	var won, lost int
	var winner domain.ApprovalStatus
	for i, err := range errs {
		if err == nil {
			won++
			winner = outcomes[i]
		} else {
			lost++
			assert.ErrorIs(t, err, domain.ErrAlreadyDecided)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, lost)

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, winner, got.Status)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	first := newRequest("r1")
	first.CreatedAt = time.Now().UTC().Add(-time.Minute)
	require.NoError(t, s.Create(ctx, first))
	require.NoError(t, s.Create(ctx, newRequest("r2")))
	_, err := s.Decide(ctx, "r1", "U_APP", domain.StatusApproved)
	require.NoError(t, err)

	pending, err := s.List(ctx, domain.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "r2", pending[0].ID)

	// Пустой статус — все заявки, свежие первыми
	all, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "r2", all[0].ID)
	assert.Equal(t, "r1", all[1].ID)
}

// Мутация выданной наружу записи не должна пролезать в хранилище.
func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.Create(ctx, newRequest("r1")))

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	got.Status = domain.StatusRejected

	fresh, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, fresh.Status)
}
