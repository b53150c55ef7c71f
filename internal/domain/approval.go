package domain

import (
	"errors"
	"strings"
	"time"
)

// Статусы State Machine
type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "PENDING"
	StatusApproved ApprovalStatus = "APPROVED"
	StatusRejected ApprovalStatus = "REJECTED"
)

var (
	ErrInvalidTransition = errors.New("invalid approval status transition")
	ErrAlreadyDecided    = errors.New("approval request already decided")
	ErrNotFound          = errors.New("approval request not found")
	ErrValidation        = errors.New("approval request validation failed")
	// ErrNotApprover — кликнул не тот, кого выбрали аппрувером (bot.enforce_approver)
	ErrNotApprover = errors.New("deciding user is not the designated approver")
)

type ApprovalRequest struct {
	ID          string         `json:"id"`
	RequesterID string         `json:"requester_id"` // Slack User ID инициатора (/approval-test)
	ApproverID  string         `json:"approver_id"`  // Slack User ID из users_select модалки
	Details     string         `json:"details"`
	Status      ApprovalStatus `json:"status"`

	DecidedBy *string    `json:"decided_by,omitempty"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// CanTransitionTo проверяет правила конечного автомата.
// Терминальные статусы (APPROVED/REJECTED) не покидаются никогда.
func (a *ApprovalRequest) CanTransitionTo(next ApprovalStatus) error {
	if a.Status != StatusPending {
		return ErrAlreadyDecided
	}
	if next == StatusPending {
		return ErrInvalidTransition
	}
	return nil
}

// Validate — минимальная проверка входа перед созданием заявки.
// Резолв самого approver_id делегирован Slack (users_select не отдаст мусор).
func Validate(requesterID, approverID, details string) error {
	if requesterID == "" || approverID == "" {
		return ErrValidation
	}
	if strings.TrimSpace(details) == "" {
		return ErrValidation
	}
	return nil
}

// Clone возвращает независимую копию записи.
// Хранилище отдает наружу только копии, чтобы читатели не мутировали
// состояние в обход Decide.
func (a *ApprovalRequest) Clone() *ApprovalRequest {
	cp := *a
	if a.DecidedBy != nil {
		v := *a.DecidedBy
		cp.DecidedBy = &v
	}
	if a.DecidedAt != nil {
		t := *a.DecidedAt
		cp.DecidedAt = &t
	}
	return &cp
}
