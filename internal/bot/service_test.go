package bot

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/approvalbot/internal/domain"
	"github.com/xela07ax/approvalbot/internal/repository/memory"
	"go.uber.org/zap"
)

type fakeArchive struct {
	mu        sync.Mutex
	saved     []*domain.ApprovalRequest
	published []*domain.ApprovalRequest
}

func (a *fakeArchive) Save(ctx context.Context, req *domain.ApprovalRequest) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.saved = append(a.saved, req)
	return nil
}

func (a *fakeArchive) PublishDecision(ctx context.Context, req *domain.ApprovalRequest) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.published = append(a.published, req)
	return nil
}

func newTestService(t *testing.T, enforce bool) (*Service, *memory.Store, *fakeArchive) {
	t.Helper()
	store := memory.NewStore()
	archive := &fakeArchive{}
	svc := NewService(store, archive, NewMetrics(nil), zap.NewNop(), enforce)
	return svc, store, archive
}

func TestCreateRequest(t *testing.T) {
	ctx := context.Background()
	svc, store, archive := newTestService(t, true)

	req, err := svc.CreateRequest(ctx, "U_REQ", "U_APP", "Need laptop budget approval")
	require.NoError(t, err)
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, domain.StatusPending, req.Status)
	assert.Equal(t, "U_REQ", req.RequesterID)
	assert.Equal(t, "U_APP", req.ApproverID)
	assert.Nil(t, req.DecidedAt)
	assert.Nil(t, req.DecidedBy)
	assert.Equal(t, 1, store.Len())
	assert.Len(t, archive.saved, 1)

	// ID уникальны между заявками
	other, err := svc.CreateRequest(ctx, "U_REQ", "U_APP", "Second request")
	require.NoError(t, err)
	assert.NotEqual(t, req.ID, other.ID)
}

func TestCreateRequestValidation(t *testing.T) {
	ctx := context.Background()
	svc, store, archive := newTestService(t, true)

	_, err := svc.CreateRequest(ctx, "U_REQ", "U_APP", "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.CreateRequest(ctx, "U_REQ", "", "details")
	assert.ErrorIs(t, err, domain.ErrValidation)

	// Хранилище не тронуто
	assert.Equal(t, 0, store.Len())
	assert.Empty(t, archive.saved)
}

func TestDecideApprove(t *testing.T) {
	ctx := context.Background()
	svc, _, archive := newTestService(t, true)

	req, err := svc.CreateRequest(ctx, "U_REQ", "U_APP", "Need laptop budget approval")
	require.NoError(t, err)

	rec, err := svc.Decide(ctx, req.ID, "U_APP", true)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, rec.Status)
	require.NotNil(t, rec.DecidedBy)
	assert.Equal(t, "U_APP", *rec.DecidedBy)
	assert.NotNil(t, rec.DecidedAt)

	// Решение ушло в Pub/Sub
	require.Len(t, archive.published, 1)
	assert.Equal(t, rec.ID, archive.published[0].ID)
}

func TestDecideUnknownID(t *testing.T) {
	svc, _, _ := newTestService(t, true)
	_, err := svc.Decide(context.Background(), "missing", "U_APP", true)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDecideTwice(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, true)

	req, err := svc.CreateRequest(ctx, "U_REQ", "U_APP", "details")
	require.NoError(t, err)

	_, err = svc.Decide(ctx, req.ID, "U_APP", false)
	require.NoError(t, err)

	_, err = svc.Decide(ctx, req.ID, "U_APP", true)
	assert.ErrorIs(t, err, domain.ErrAlreadyDecided)

	got, err := svc.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, got.Status)
}

func TestDecideEnforcesApprover(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, true)

	req, err := svc.CreateRequest(ctx, "U_REQ", "U_APP", "details")
	require.NoError(t, err)

	rec, err := svc.Decide(ctx, req.ID, "U_SOMEONE", true)
	assert.ErrorIs(t, err, domain.ErrNotApprover)
	require.NotNil(t, rec) // запись возвращается для нотификации кликнувшему

	got, err := svc.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
}

// bot.enforce_approver=false возвращает разрешительное поведение исходного бота.
func TestDecidePermissiveMode(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, false)

	req, err := svc.CreateRequest(ctx, "U_REQ", "U_APP", "details")
	require.NoError(t, err)

	rec, err := svc.Decide(ctx, req.ID, "U_SOMEONE", true)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, rec.Status)
	assert.Equal(t, "U_SOMEONE", *rec.DecidedBy)
}

func TestGetApprovals(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, true)

	req, err := svc.CreateRequest(ctx, "U_REQ", "U_APP", "details")
	require.NoError(t, err)
	_, err = svc.CreateRequest(ctx, "U_REQ", "U_APP", "more details")
	require.NoError(t, err)
	_, err = svc.Decide(ctx, req.ID, "U_APP", true)
	require.NoError(t, err)

	pending, err := svc.GetApprovals(ctx, string(domain.StatusPending))
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	all, err := svc.GetApprovals(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// Сервис работает и без Redis (archive == nil).
func TestNilArchive(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewStore(), nil, NewMetrics(nil), zap.NewNop(), true)

	req, err := svc.CreateRequest(ctx, "U_REQ", "U_APP", "details")
	require.NoError(t, err)

	_, err = svc.Decide(ctx, req.ID, "U_APP", true)
	assert.NoError(t, err)
}
