package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xela07ax/approvalbot/internal/domain"
)

// Store — единственное разделяемое мутабельное состояние бота.
// Обычный map под RWMutex: Decide выполняет check-and-set неделимо,
// поэтому из двух одновременных кликов по одной заявке выигрывает ровно один.
type Store struct {
	mu       sync.RWMutex
	requests map[string]*domain.ApprovalRequest
}

func NewStore() *Store {
	return &Store{
		requests: make(map[string]*domain.ApprovalRequest),
	}
}

// Create кладет новую заявку. ID генерирует вызывающая сторона (uuid).
func (s *Store) Create(ctx context.Context, req *domain.ApprovalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requests[req.ID]; exists {
		return domain.ErrValidation
	}
	s.requests[req.ID] = req.Clone()
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*domain.ApprovalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return req.Clone(), nil
}

// Decide атомарно переводит заявку в терминальный статус.
// Аналог UPDATE ... WHERE status = 'PENDING': проверка и запись под одной
// блокировкой, повторный клик получает ErrAlreadyDecided без мутаций.
func (s *Store) Decide(ctx context.Context, id, decidedBy string, next domain.ApprovalStatus) (*domain.ApprovalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if err := req.CanTransitionTo(next); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	req.Status = next
	req.DecidedBy = &decidedBy
	req.DecidedAt = &now

	return req.Clone(), nil
}

// List возвращает заявки по статусу (пустой статус — все), свежие первыми.
func (s *Store) List(ctx context.Context, status domain.ApprovalStatus) ([]*domain.ApprovalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Пустой слайс, чтобы в JSON был [] вместо null
	results := make([]*domain.ApprovalRequest, 0)
	for _, req := range s.requests {
		if status != "" && req.Status != status {
			continue
		}
		results = append(results, req.Clone())
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})

	return results, nil
}

// Len — текущий размер таблицы заявок (записи не удаляются до конца процесса).
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.requests)
}
