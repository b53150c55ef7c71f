package bot

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/approvalbot/internal/domain"
	"go.uber.org/zap"
)

// RequestStore Описываем, что нам нужно от хранилища заявок
type RequestStore interface {
	Create(ctx context.Context, req *domain.ApprovalRequest) error
	Get(ctx context.Context, id string) (*domain.ApprovalRequest, error)
	Decide(ctx context.Context, id, decidedBy string, next domain.ApprovalStatus) (*domain.ApprovalRequest, error)
	List(ctx context.Context, status domain.ApprovalStatus) ([]*domain.ApprovalRequest, error)
}

// Archive — необязательное зеркало в Redis (nil = выключено)
type Archive interface {
	Save(ctx context.Context, req *domain.ApprovalRequest) error
	PublishDecision(ctx context.Context, req *domain.ApprovalRequest) error
}

// Service — контроллер жизненного цикла заявки.
// Единственный писатель в Request Store; диспетчер и консоль ходят только сюда.
type Service struct {
	store   RequestStore
	archive Archive
	metrics *Metrics
	logger  *zap.Logger

	enforceApprover bool
}

func NewService(store RequestStore, archive Archive, metrics *Metrics, logger *zap.Logger, enforceApprover bool) *Service {
	return &Service{
		store:           store,
		archive:         archive,
		metrics:         metrics,
		logger:          logger.Named("lifecycle"),
		enforceApprover: enforceApprover,
	}
}

// CreateRequest создает заявку в PENDING.
// ID минтится здесь и уедет в value кнопок — он единственная связь между
// "сообщение отправлено" и "кнопка нажата".
func (s *Service) CreateRequest(ctx context.Context, requesterID, approverID, details string) (*domain.ApprovalRequest, error) {
	if err := domain.Validate(requesterID, approverID, details); err != nil {
		s.metrics.ErrorTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	req := &domain.ApprovalRequest{
		ID:          uuid.New().String(),
		RequesterID: requesterID,
		ApproverID:  approverID,
		Details:     details,
		Status:      domain.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.store.Create(ctx, req); err != nil {
		return nil, err
	}

	s.metrics.RequestsCreated.Inc()
	s.metrics.PendingRequests.Inc()
	s.logger.Info("approval request created",
		zap.String("id", req.ID),
		zap.String("requester", req.RequesterID),
		zap.String("approver", req.ApproverID))

	s.archiveSave(ctx, req)
	return req, nil
}

// Decide переводит заявку в терминальный статус.
// Сам check-and-set неделим внутри стора; проверка аппрувера до него не
// гоночная — ApproverID выставляется один раз при создании и не меняется.
func (s *Service) Decide(ctx context.Context, id, decidedBy string, approve bool) (*domain.ApprovalRequest, error) {
	next := domain.StatusRejected
	if approve {
		next = domain.StatusApproved
	}

	if s.enforceApprover {
		req, err := s.store.Get(ctx, id)
		if err != nil {
			s.metrics.ErrorTotal.WithLabelValues("not_found").Inc()
			return nil, err
		}
		if req.ApproverID != decidedBy {
			s.metrics.ErrorTotal.WithLabelValues("not_approver").Inc()
			s.logger.Warn("decision attempt by non-approver",
				zap.String("id", id),
				zap.String("clicked_by", decidedBy),
				zap.String("approver", req.ApproverID))
			return req, domain.ErrNotApprover
		}
	}

	rec, err := s.store.Decide(ctx, id, decidedBy, next)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			s.metrics.ErrorTotal.WithLabelValues("not_found").Inc()
		case errors.Is(err, domain.ErrAlreadyDecided):
			s.metrics.ErrorTotal.WithLabelValues("already_decided").Inc()
		}
		return nil, err
	}

	s.metrics.PendingRequests.Dec()
	switch rec.Status {
	case domain.StatusApproved:
		s.metrics.Decisions.WithLabelValues("approved").Inc()
	case domain.StatusRejected:
		s.metrics.Decisions.WithLabelValues("rejected").Inc()
	}

	s.logger.Info("approval request decided",
		zap.String("id", rec.ID),
		zap.String("status", string(rec.Status)),
		zap.String("decided_by", decidedBy))

	s.archiveSave(ctx, rec)
	s.archivePublish(ctx, rec)
	return rec, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.ApprovalRequest, error) {
	return s.store.Get(ctx, id)
}

// GetApprovals — выборка для консоли. Пустой статус отдает все заявки.
func (s *Service) GetApprovals(ctx context.Context, status string) ([]*domain.ApprovalRequest, error) {
	return s.store.List(ctx, domain.ApprovalStatus(status))
}

// Архив best-effort: недоступный Redis не должен валить жизненный цикл
func (s *Service) archiveSave(ctx context.Context, req *domain.ApprovalRequest) {
	if s.archive == nil {
		return
	}
	if err := s.archive.Save(ctx, req); err != nil {
		s.logger.Warn("archive save failed", zap.String("id", req.ID), zap.Error(err))
	}
}

func (s *Service) archivePublish(ctx context.Context, req *domain.ApprovalRequest) {
	if s.archive == nil {
		return
	}
	if err := s.archive.PublishDecision(ctx, req); err != nil {
		s.logger.Warn("decision publish failed", zap.String("id", req.ID), zap.Error(err))
	}
}
