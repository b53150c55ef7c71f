package bot

import (
	"context"
	"errors"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
	"github.com/xela07ax/approvalbot/internal/domain"
	"github.com/xela07ax/approvalbot/internal/gateway"
	"go.uber.org/zap"
)

// Dispatcher маршрутизирует входящие события Socket Mode на контроллер.
// Каждое событие ack'ается до любой сетевой работы (дедлайн Slack ~3 секунды),
// дальше обработка уходит в свою горутину.
type Dispatcher struct {
	sm      *socketmode.Client
	gw      gateway.Messenger
	service *Service
	metrics *Metrics
	logger  *zap.Logger

	slashCommand string
}

func NewDispatcher(sm *socketmode.Client, gw gateway.Messenger, service *Service, metrics *Metrics, logger *zap.Logger, slashCommand string) *Dispatcher {
	return &Dispatcher{
		sm:           sm,
		gw:           gw,
		service:      service,
		metrics:      metrics,
		logger:       logger.Named("dispatcher"),
		slashCommand: slashCommand,
	}
}

// Run запускает Socket Mode соединение и цикл обработки событий.
// Блокируется до отмены контекста.
func (d *Dispatcher) Run(ctx context.Context) error {
	go d.consume(ctx)
	return d.sm.RunContext(ctx)
}

func (d *Dispatcher) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-d.sm.Events:
			if !ok {
				return
			}
			d.route(ctx, evt)
		}
	}
}

func (d *Dispatcher) route(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnected:
		d.logger.Info("socket mode connected")

	case socketmode.EventTypeConnectionError:
		d.logger.Warn("socket mode connection error")

	case socketmode.EventTypeSlashCommand:
		cmd, ok := evt.Data.(slack.SlashCommand)
		if !ok || evt.Request == nil {
			return
		}
		d.sm.Ack(*evt.Request)
		go d.HandleSlashCommand(ctx, cmd)

	case socketmode.EventTypeInteractive:
		cb, ok := evt.Data.(slack.InteractionCallback)
		if !ok || evt.Request == nil {
			return
		}
		// Пустой ack: для view_submission это закрывает модалку
		d.sm.Ack(*evt.Request)

		switch cb.Type {
		case slack.InteractionTypeViewSubmission:
			go d.HandleViewSubmission(ctx, cb)
		case slack.InteractionTypeBlockActions:
			go d.HandleBlockActions(ctx, cb)
		}
	}
}

// HandleSlashCommand открывает модалку по trigger_id команды.
func (d *Dispatcher) HandleSlashCommand(ctx context.Context, cmd slack.SlashCommand) {
	if cmd.Command != d.slashCommand {
		d.logger.Debug("unknown slash command", zap.String("command", cmd.Command))
		return
	}

	if err := d.gw.OpenApprovalModal(ctx, cmd.TriggerID); err != nil {
		// Ошибки Gateway гасим на границе обработчика: пользователю
		// Slack сам покажет "зависшее" взаимодействие
		d.metrics.ErrorTotal.WithLabelValues("gateway").Inc()
		d.logger.Error("open modal failed",
			zap.String("requester", cmd.UserID),
			zap.Error(err))
	}
}

// HandleViewSubmission создает заявку из сабмита формы и рассылает нотификации.
func (d *Dispatcher) HandleViewSubmission(ctx context.Context, cb slack.InteractionCallback) {
	if cb.View.CallbackID != gateway.CallbackApprovalModal || cb.View.State == nil {
		return
	}

	values := cb.View.State.Values
	approverID := values[gateway.BlockApprover][gateway.ActionApprover].SelectedUser
	details := values[gateway.BlockDetails][gateway.ActionDetails].Value
	requesterID := cb.User.ID

	req, err := d.service.CreateRequest(ctx, requesterID, approverID, details)
	if err != nil {
		d.logger.Error("create request failed",
			zap.String("requester", requesterID),
			zap.Error(err))
		return
	}

	// Порядок доставки двух нотификаций ни на что не влияет,
	// важно чтобы обе в итоге ушли — поэтому не прерываемся на первой ошибке
	if err := d.gw.SendMessage(ctx, req.ApproverID,
		gateway.ApproverPromptText(req), gateway.ApproverPromptBlocks(req)...); err != nil {
		d.metrics.ErrorTotal.WithLabelValues("gateway").Inc()
		d.logger.Error("notify approver failed", zap.String("id", req.ID), zap.Error(err))
	}

	if err := d.gw.SendMessage(ctx, req.RequesterID,
		gateway.RequesterConfirmationText(req)); err != nil {
		d.metrics.ErrorTotal.WithLabelValues("gateway").Inc()
		d.logger.Error("notify requester failed", zap.String("id", req.ID), zap.Error(err))
	}
}

// HandleBlockActions резолвит клик по кнопке в решение.
// value кнопки несет ID заявки — никакого парсинга составных строк.
func (d *Dispatcher) HandleBlockActions(ctx context.Context, cb slack.InteractionCallback) {
	for _, action := range cb.ActionCallback.BlockActions {
		var approve bool
		switch action.ActionID {
		case gateway.ActionApprove:
			approve = true
		case gateway.ActionReject:
			approve = false
		default:
			continue
		}

		d.decide(ctx, action.Value, cb.User.ID, approve)
		return
	}
}

func (d *Dispatcher) decide(ctx context.Context, requestID, clickedBy string, approve bool) {
	rec, err := d.service.Decide(ctx, requestID, clickedBy, approve)

	switch {
	case err == nil:
		// дальше нотификации

	case errors.Is(err, domain.ErrNotApprover):
		d.logger.Warn("non-approver click suppressed",
			zap.String("id", requestID),
			zap.String("clicked_by", clickedBy))
		if rec != nil {
			if sendErr := d.gw.SendMessage(ctx, clickedBy, gateway.NotApproverText(rec)); sendErr != nil {
				d.metrics.ErrorTotal.WithLabelValues("gateway").Inc()
				d.logger.Error("notify non-approver failed", zap.Error(sendErr))
			}
		}
		return

	case errors.Is(err, domain.ErrAlreadyDecided):
		// Повторный клик: молча гасим, ре-нотификаций не будет
		d.logger.Info("duplicate decision click",
			zap.String("id", requestID),
			zap.String("clicked_by", clickedBy))
		return

	default:
		d.logger.Error("decide failed", zap.String("id", requestID), zap.Error(err))
		return
	}

	if err := d.gw.SendMessage(ctx, rec.RequesterID, gateway.DecisionRequesterText(rec)); err != nil {
		d.metrics.ErrorTotal.WithLabelValues("gateway").Inc()
		d.logger.Error("notify requester failed", zap.String("id", rec.ID), zap.Error(err))
	}

	if err := d.gw.SendMessage(ctx, clickedBy, gateway.DecisionApproverText(rec)); err != nil {
		d.metrics.ErrorTotal.WithLabelValues("gateway").Inc()
		d.logger.Error("notify approver failed", zap.String("id", rec.ID), zap.Error(err))
	}
}
