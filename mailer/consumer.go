package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"shop-svc/models"
)

// Consumer reads order_finalized events and sends confirmation email for
// each one. Delivery is best-effort: a failed send is logged and the offset
// is committed anyway so one broken address cannot wedge the stream.
type Consumer struct {
	reader *kafka.Reader
	mailer *Mailer
	logger *zap.Logger
}

func NewConsumer(mailer *Mailer, logger *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: []string{getEnv("KAFKA_BROKER", "localhost:9092")},
		GroupID: getEnv("KAFKA_MAIL_GROUP", "order-mailer"),
		Topic:   getEnv("KAFKA_TOPIC", "order_events"),
	})
	return &Consumer{reader: reader, mailer: mailer, logger: logger}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// Run blocks until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("Mail consumer started", zap.String("topic", c.reader.Config().Topic))

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("failed to read message: %w", err)
		}

		var event models.OrderFinalizedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logger.Error("Failed to unmarshal event", zap.Error(err))
			continue
		}
		if event.EventType != "order_finalized" || event.Email == "" {
			continue
		}

		if err := c.mailer.Send(confirmationMessage(event)); err != nil {
			c.logger.Error("Failed to send confirmation email",
				zap.String("order_id", event.OrderID), zap.Error(err))
		}
	}
}

func confirmationMessage(event models.OrderFinalizedEvent) Message {
	paymentState := "Pending"
	if event.Paid {
		paymentState = "Paid"
	}

	html := fmt.Sprintf(`
<div style="font-family: Arial, sans-serif; padding:20px; border:1px solid #ddd;">
  <h2>Order Confirmation - #%s</h2>
  <p>Hi %s, thank you for your order!</p>
  <p>Total: &#8358;%.2f</p>
  <p>Status: %s</p>
  <hr/>
  <p>We are processing your order and will notify you soon.</p>
</div>`,
		event.OrderID, event.FullName, event.TotalAmount, paymentState)

	return Message{
		To:      event.Email,
		Subject: fmt.Sprintf("Your Order #%s is Confirmed!", event.OrderID),
		Text: fmt.Sprintf("Your order #%s has been placed. Total: NGN %.2f",
			event.OrderID, event.TotalAmount),
		HTML: html,
	}
}
