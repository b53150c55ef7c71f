package gateway

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// Client — реализация Gateway поверх Slack Web API.
// Резолв идентичностей, рендер модалок и доставка DM целиком на стороне Slack,
// мы только дергаем методы.
type Client struct {
	api    *slack.Client
	logger *zap.Logger
}

func New(api *slack.Client, logger *zap.Logger) *Client {
	return &Client{
		api:    api,
		logger: logger.Named("gateway"),
	}
}

// OpenApprovalModal рендерит форму заявки по trigger_id.
// trigger_id живет секунды — вызов должен идти сразу после ack.
func (c *Client) OpenApprovalModal(ctx context.Context, triggerID string) error {
	if _, err := c.api.OpenViewContext(ctx, triggerID, NewApprovalModal()); err != nil {
		return fmt.Errorf("gateway: open modal: %w", err)
	}
	return nil
}

// SendMessage доставляет DM. В качестве recipient достаточно Slack User ID —
// chat.postMessage сам откроет канал переписки с пользователем.
func (c *Client) SendMessage(ctx context.Context, recipientID, text string, blocks ...slack.Block) error {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if len(blocks) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(blocks...))
	}

	if _, _, err := c.api.PostMessageContext(ctx, recipientID, opts...); err != nil {
		return fmt.Errorf("gateway: post message to %s: %w", recipientID, err)
	}

	c.logger.Debug("message delivered", zap.String("recipient", recipientID))
	return nil
}
