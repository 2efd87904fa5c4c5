package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/farmdirect/marketplace/internal/analytics"
	"github.com/farmdirect/marketplace/internal/identity"
	kafkax "github.com/farmdirect/marketplace/internal/kafka"
	"github.com/farmdirect/marketplace/internal/orders"
	"github.com/farmdirect/marketplace/internal/redisx"
)

// Worker turns order events into customer mail and analytics counters.
// Everything downstream of the dedup check is best effort: a failed mail or
// counter is logged and the offset is committed anyway, so customers never
// get the same mail twice.
type Worker struct {
	Users     identity.Store
	Mail      OrderNotifier
	Analytics *analytics.Recorder
	Redis     *redis.Client
	Log       *logrus.Logger
	Service   string
}

// seen claims the event id in Redis. A second delivery of the same event
// finds the key and is dropped.
func (w *Worker) seen(ctx context.Context, eventID string) bool {
	key := fmt.Sprintf(redisx.KeyDedup, w.Service, eventID)
	ok, err := w.Redis.SetNX(ctx, key, 1, redisx.TTLDedup).Result()
	if err != nil {
		w.Log.WithError(err).Warn("dedup check failed, processing anyway")
		return false
	}
	return !ok
}

func (w *Worker) customer(ctx context.Context, id string) (*identity.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	return w.Users.FindByID(ctx, uid)
}

func (w *Worker) HandleOrderCreated(ctx context.Context, m kafkago.Message) error {
	var ev orders.Envelope
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		w.Log.WithError(err).Warn("undecodable event, dropping")
		return nil
	}
	if w.seen(ctx, ev.EventID) {
		return nil
	}
	p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](ev.Payload)
	if err != nil {
		w.Log.WithError(err).WithField("event_id", ev.EventID).Warn("bad payload, dropping")
		return nil
	}

	u, err := w.customer(ctx, p.CustomerID)
	if err != nil {
		w.Log.WithError(err).WithField("order_id", p.OrderID).Warn("customer lookup failed")
	} else if err := w.Mail.SendOrderConfirmation(ctx, u.Email, u.Name, p.OrderID, p.TotalCents); err != nil {
		w.Log.WithError(err).WithField("order_id", p.OrderID).Warn("confirmation mail failed")
	}

	for _, it := range p.Items {
		if err := w.Analytics.RecordSale(ctx, it.ProductID, it.UnitPriceCents*it.Quantity); err != nil {
			w.Log.WithError(err).WithField("product_id", it.ProductID).Warn("sales counter failed")
		}
	}
	return nil
}

func (w *Worker) HandleStatusChanged(ctx context.Context, m kafkago.Message) error {
	var ev orders.Envelope
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		w.Log.WithError(err).Warn("undecodable event, dropping")
		return nil
	}
	if w.seen(ctx, ev.EventID) {
		return nil
	}
	p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](ev.Payload)
	if err != nil {
		w.Log.WithError(err).WithField("event_id", ev.EventID).Warn("bad payload, dropping")
		return nil
	}

	u, err := w.customer(ctx, p.CustomerID)
	if err != nil {
		w.Log.WithError(err).WithField("order_id", p.OrderID).Warn("customer lookup failed")
		return nil
	}
	if err := w.Mail.SendDeliveryUpdate(ctx, u.Email, u.Name, p.OrderID, p.NewStatus); err != nil {
		w.Log.WithError(err).WithField("order_id", p.OrderID).Warn("delivery update mail failed")
	}
	return nil
}
