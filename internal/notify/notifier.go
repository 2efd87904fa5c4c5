// Package notify delivers one-time codes and order updates to users.
// Delivery of a login code is on the critical path (a challenge is not live
// until the code reached the user); order updates are best effort.
package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

type CodeNotifier interface {
	SendCode(ctx context.Context, destination, code string) error
}

type OrderNotifier interface {
	SendOrderConfirmation(ctx context.Context, destination, name, orderID string, totalCents int) error
	SendDeliveryUpdate(ctx context.Context, destination, name, orderID, status string) error
}

// LogNotifier writes everything to the log instead of sending it. Used in
// development, where the original backend printed codes to the console too.
type LogNotifier struct {
	Log *logrus.Logger
}

func (n *LogNotifier) SendCode(_ context.Context, destination, code string) error {
	n.Log.WithFields(logrus.Fields{"to": destination, "code": code}).Info("login code (dev delivery)")
	return nil
}

func (n *LogNotifier) SendOrderConfirmation(_ context.Context, destination, _ string, orderID string, totalCents int) error {
	n.Log.WithFields(logrus.Fields{"to": destination, "order_id": orderID, "total_cents": totalCents}).
		Info("order confirmation (dev delivery)")
	return nil
}

func (n *LogNotifier) SendDeliveryUpdate(_ context.Context, destination, _ string, orderID, status string) error {
	n.Log.WithFields(logrus.Fields{"to": destination, "order_id": orderID, "status": status}).
		Info("delivery update (dev delivery)")
	return nil
}
