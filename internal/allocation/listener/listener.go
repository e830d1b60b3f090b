package listener

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/hanifmhd/erp-allocation-service/internal/allocation"
	"github.com/hanifmhd/erp-allocation-service/pkg/broker"
	"github.com/hanifmhd/erp-allocation-service/pkg/logger"
)

// StockListener consumes stock events from the inventory service and drops
// cached candidate lists for affected products, so re-opened lines see a
// fresher freeQty. It cannot fix sessions that are already open; a commit
// against truly stale stock still fails with a conflict upstream.
type StockListener struct {
	consumer *broker.KafkaConsumer
	uc       allocation.UseCase
	logger   logger.ZapLogger
}

func NewStockListener(consumer *broker.KafkaConsumer, uc allocation.UseCase, logger logger.ZapLogger) *StockListener {
	return &StockListener{
		consumer: consumer,
		uc:       uc,
		logger:   logger,
	}
}

func (l *StockListener) Start(ctx context.Context) {
	l.logger.Info("Starting Stock Kafka Listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping Stock Kafka Listener")
			return
		default:
			msg, err := l.consumer.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("Failed to read kafka message", zap.Error(err))
				time.Sleep(1 * time.Second)
				continue
			}
			l.processMessage(ctx, msg.Value)
		}
	}
}

type StockEvent struct {
	EventID   string       `json:"event_id"`
	EventType string       `json:"event_type"`
	Payload   StockPayload `json:"payload"`
	Timestamp time.Time    `json:"timestamp"`
}

type StockPayload struct {
	MerchantID     string  `json:"merchant_id"`
	ProductID      string  `json:"product_id"`
	LotNumber      string  `json:"lot_number"`
	QuantityChange float64 `json:"quantity_change"`
}

func (l *StockListener) processMessage(ctx context.Context, value []byte) {
	var event StockEvent
	if err := json.Unmarshal(value, &event); err != nil {
		l.logger.Error("Failed to unmarshal event", zap.Error(err))
		return
	}

	switch event.EventType {
	case "StockAdjusted", "LotReceived", "LotLocked", "LotUnlocked":
	default:
		return
	}

	l.logger.Debug("Invalidating candidate cache on stock event",
		zap.String("event_type", event.EventType),
		zap.String("product_id", event.Payload.ProductID),
	)

	l.uc.InvalidateCandidates(ctx, event.Payload.MerchantID, event.Payload.ProductID)
}
