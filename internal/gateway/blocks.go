package gateway

import (
	"fmt"

	"github.com/slack-go/slack"
	"github.com/xela07ax/approvalbot/internal/domain"
)

// Идентификаторы блоков и действий. Совпадают с payload'ами, которые Slack
// вернет в view_submission / block_actions — разбор в dispatcher завязан на них.
const (
	CallbackApprovalModal = "approval-modal"

	BlockApprover  = "approver"
	ActionApprover = "approver"
	BlockDetails   = "approval_details"
	ActionDetails  = "approval_details"

	ActionApprove = "approve_button"
	ActionReject  = "reject_button"
)

// NewApprovalModal собирает форму заявки: users_select аппрувера
// и многострочное описание.
func NewApprovalModal() slack.ModalViewRequest {
	approverEl := slack.NewOptionsSelectBlockElement(
		slack.OptTypeUser,
		slack.NewTextBlockObject(slack.PlainTextType, "Select an approver", false, false),
		ActionApprover,
	)

	detailsEl := slack.NewPlainTextInputBlockElement(nil, ActionDetails)
	detailsEl.Multiline = true

	return slack.ModalViewRequest{
		Type:       slack.VTModal,
		CallbackID: CallbackApprovalModal,
		Title:      slack.NewTextBlockObject(slack.PlainTextType, "Request Approval", false, false),
		Submit:     slack.NewTextBlockObject(slack.PlainTextType, "Submit", false, false),
		Close:      slack.NewTextBlockObject(slack.PlainTextType, "Cancel", false, false),
		Blocks: slack.Blocks{
			BlockSet: []slack.Block{
				slack.NewInputBlock(BlockApprover,
					slack.NewTextBlockObject(slack.PlainTextType, "Approver", false, false), nil, approverEl),
				slack.NewInputBlock(BlockDetails,
					slack.NewTextBlockObject(slack.PlainTextType, "Approval Details", false, false), nil, detailsEl),
			},
		},
	}
}

// ApproverPromptText — fallback-текст для нотификаций без Block Kit рендера.
func ApproverPromptText(req *domain.ApprovalRequest) string {
	return fmt.Sprintf("You have a new approval request:\n%s", req.Details)
}

// ApproverPromptBlocks собирает DM аппруверу: описание, карточка полей
// и кнопки Approve/Reject. В value кнопок уходит ID заявки — по нему
// клик резолвится через Request Store, а не парсингом составной строки.
func ApproverPromptBlocks(req *domain.ApprovalRequest) []slack.Block {
	header := slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("You have a new approval request:\n*%s*", req.Details), false, false),
		nil, nil,
	)

	fields := slack.NewSectionBlock(nil, []*slack.TextBlockObject{
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Requested By:*\n<@%s>", req.RequesterID), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*status:*\n%s", statusLabel(req.Status)), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Requested To:*\n<@%s>", req.ApproverID), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, "*Required By:*\nEveryone", false, false),
	}, nil)

	approveBtn := slack.NewButtonBlockElement(ActionApprove, req.ID,
		slack.NewTextBlockObject(slack.PlainTextType, "Approve", true, false)).
		WithStyle(slack.StylePrimary)
	rejectBtn := slack.NewButtonBlockElement(ActionReject, req.ID,
		slack.NewTextBlockObject(slack.PlainTextType, "Reject", true, false)).
		WithStyle(slack.StyleDanger)

	actions := slack.NewActionBlock("", approveBtn, rejectBtn)

	return []slack.Block{header, fields, actions}
}

// RequesterConfirmationText — подтверждение инициатору после отправки заявки.
func RequesterConfirmationText(req *domain.ApprovalRequest) string {
	return fmt.Sprintf("Your approval request has been sent to <@%s>\n*Approval Request Description* : %s",
		req.ApproverID, req.Details)
}

// DecisionRequesterText — итог для инициатора.
func DecisionRequesterText(req *domain.ApprovalRequest) string {
	if req.Status == domain.StatusApproved {
		return fmt.Sprintf("Your request has been approved by <@%s>.", decidedBy(req))
	}
	return fmt.Sprintf("Your request has been rejected by <@%s>.", decidedBy(req))
}

// DecisionApproverText — подтверждение принявшему решение.
func DecisionApproverText(req *domain.ApprovalRequest) string {
	if req.Status == domain.StatusApproved {
		return fmt.Sprintf("Approval from <@%s> accepted successfully", req.RequesterID)
	}
	return fmt.Sprintf("Approval from <@%s> rejected successfully", req.RequesterID)
}

// NotApproverText — ответ кликнувшему мимо (bot.enforce_approver).
func NotApproverText(req *domain.ApprovalRequest) string {
	return fmt.Sprintf("Only <@%s> can decide this request.", req.ApproverID)
}

func statusLabel(s domain.ApprovalStatus) string {
	switch s {
	case domain.StatusPending:
		return "Pending"
	case domain.StatusApproved:
		return "Approved"
	case domain.StatusRejected:
		return "Rejected"
	}
	return string(s)
}

func decidedBy(req *domain.ApprovalRequest) string {
	if req.DecidedBy != nil {
		return *req.DecidedBy
	}
	return req.ApproverID
}
