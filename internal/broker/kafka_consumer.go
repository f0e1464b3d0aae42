package broker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"jewelry_checkout/internal/metrics"
	"jewelry_checkout/internal/model"
	"jewelry_checkout/internal/session"

	"github.com/go-playground/validator/v10"
	"github.com/segmentio/kafka-go"
)

// MessageConsumer читает события выигрыша аукциона и заводит по ним
// сессии оформления заказа
type MessageConsumer struct {
	Reader    *kafka.Reader
	sessions  *session.Manager
	metrics   *metrics.Metrics
	validator *validator.Validate
}

// NewMessageConsumer создает новый экземпляр консьюмера со всеми зависимостями
func NewMessageConsumer(
	brokers []string,
	sessions *session.Manager,
	metrics *metrics.Metrics,
	validator *validator.Validate,
) *MessageConsumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          "auction-wins",
		GroupID:        "checkout-service-group",
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		CommitInterval: 0,
	})

	return &MessageConsumer{
		Reader:    r,
		sessions:  sessions,
		metrics:   metrics,
		validator: validator,
	}
}

// StartConsuming запускает главный цикл чтения и обработки событий из Kafka.
// onCriticalError - это колбэк, который вызывается при неустранимой ошибке,
// чтобы инициировать остановку всего сервиса.
func (mc *MessageConsumer) StartConsuming(ctx context.Context, onCriticalError context.CancelFunc) {
	slog.Info("Kafka consumer connected and started consuming auction wins")
	for {
		msg, err := mc.Reader.ReadMessage(ctx) //ожидаем сообщения из kafka
		if err != nil {
			if errors.Is(err, context.Canceled) {
				slog.Info("Kafka consumer context cancelled, stopping...")
				break
			}
			slog.Error("Error while receiving message from Kafka", "error", err)
			continue
		}

		mc.metrics.MessagesConsumed.Inc()

		//логируем некорректные сообщения и коммитим в kafka что получили сообщение
		var win model.AuctionWin
		if err := json.Unmarshal(msg.Value, &win); err != nil {
			slog.Warn("Failed to unmarshal auction win. Message ignored.", "error", err)
			if err := mc.Reader.CommitMessages(ctx, msg); err != nil {
				slog.Error("Failed to commit unmarshallable kafka message", "error", err)
			}
			continue
		}

		if err = mc.validator.Struct(win); err != nil {
			mc.metrics.ValidationErrors.Inc()
			slog.Warn("Invalid auction win received. Message ignored.", "error", err.Error(), "auction_id", win.AuctionID)
			// Сообщение невалидно, коммитим его, чтобы не обрабатывать повторно
			if err := mc.Reader.CommitMessages(ctx, msg); err != nil {
				slog.Error("Failed to commit invalid kafka message", "error", err)
			}
			continue
		}

		sess, err := mc.sessions.Create(win.AuctionID, win.Item, win.BidAmount, win.WinnerEmail)
		if err != nil {
			if errors.Is(err, session.ErrDuplicateAuction) {
				// Повторная доставка того же выигрыша, коммитим и пропускаем
				slog.Warn("Auction win already has a checkout session. Message ignored.", "auction_id", win.AuctionID)
				if err := mc.Reader.CommitMessages(ctx, msg); err != nil {
					slog.Error("Failed to commit duplicate kafka message", "error", err)
				}
				continue
			}
			slog.Error("Failed to create checkout session from auction win", "error", err, "auction_id", win.AuctionID)
			continue
		}
		mc.metrics.SessionsStarted.Inc()
		slog.Info("Checkout session created from auction win",
			"session_id", sess.ID,
			"auction_id", win.AuctionID,
			"item_id", win.Item.ID,
			"bid_amount", win.BidAmount,
		)

		if err := mc.Reader.CommitMessages(ctx, msg); err != nil {
			slog.Error("CRITICAL: Failed to commit kafka message after processing. Shutting down.", "error", err)
			onCriticalError()
			break
		}
	}
}

// Close закрывает соединение с Kafka
func (mc *MessageConsumer) Close() {
	slog.Info("Closing kafka reader...")
	if err := mc.Reader.Close(); err != nil {
		slog.Error("Failed to close kafka reader", "error", err)
	}
}
