package rabbitmq

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"deskbackend/core"
	"deskbackend/models"
)

const (
	assignmentNeededEventType = "conversations.assignment_needed.v1"
	publisherName             = "deskbackend"
)

// eventMeta identifies one published event
type eventMeta struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Producer string    `json:"producer"`
	Time     time.Time `json:"time"`
}

// assignmentNeededEvent is the payload broadcast to an org's supporters when
// a conversation is queued under the notify_all fallback
type assignmentNeededEvent struct {
	OrganizationID models.OrgID `json:"organization_id"`
	ConversationID string       `json:"conversation_id"`
	SupporterIDs   []string     `json:"supporter_ids"`
}

type envelope struct {
	Meta eventMeta             `json:"meta"`
	Data assignmentNeededEvent `json:"data"`
}

// NotificationsPublisher broadcasts assignment events over a RabbitMQ topic
// exchange. Delivery is best-effort by design: publish errors are surfaced to
// the caller, which logs and moves on.
type NotificationsPublisher struct {
	conn     *amqp091.Connection
	exchange string
	log      *slog.Logger
}

func NewNotificationsPublisher(url, exchange string, logger *slog.Logger) (*NotificationsPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(
		exchange, "topic", true, false, false, false, nil,
	); err != nil {
		conn.Close()
		return nil, err
	}

	return &NotificationsPublisher{
		conn:     conn,
		exchange: exchange,
		log:      logger,
	}, nil
}

func (p *NotificationsPublisher) BroadcastAssignmentNeeded(
	ctx context.Context,
	organizationID models.OrgID,
	supporterIDs []string,
	conversationID string,
) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	msg := envelope{
		Meta: eventMeta{
			ID:       core.NewID("evt"),
			Type:     assignmentNeededEventType,
			Producer: publisherName,
			Time:     time.Now().UTC(),
		},
		Data: assignmentNeededEvent{
			OrganizationID: organizationID,
			ConversationID: conversationID,
			SupporterIDs:   supporterIDs,
		},
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	routingKey := assignmentNeededEventType
	err = ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    msg.Meta.Time,
		Body:         body,
	})
	if err != nil {
		return err
	}

	p.log.Info("published assignment-needed event",
		slog.String("conversation_id", conversationID),
		slog.Int("supporters", len(supporterIDs)),
	)
	return nil
}

func (p *NotificationsPublisher) Close() error {
	return p.conn.Close()
}

// FallbackNotificationsPublisher is used when no broker is configured: it
// logs the skipped broadcast and reports success.
type FallbackNotificationsPublisher struct {
	log *slog.Logger
}

func NewFallback(logger *slog.Logger) *FallbackNotificationsPublisher {
	return &FallbackNotificationsPublisher{log: logger}
}

func (p *FallbackNotificationsPublisher) BroadcastAssignmentNeeded(
	ctx context.Context,
	organizationID models.OrgID,
	supporterIDs []string,
	conversationID string,
) error {
	p.log.Warn("notifications broker not configured, skipped broadcast",
		slog.String("conversation_id", conversationID),
	)
	return nil
}

func (p *FallbackNotificationsPublisher) Close() error {
	return nil
}
