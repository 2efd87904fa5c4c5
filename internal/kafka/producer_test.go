package kafka

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

func discardLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// Close and context cancellation arrive in arbitrary order during shutdown;
// neither ordering may close the inbox twice or leave WaitClosed hanging.
func TestProducerShutdownCloseThenCancel(t *testing.T) {
	log := discardLogger()
	for i := 0; i < 100; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		p := NewProducer([]string{"localhost:0"}, "orders.test", 8, log)
		p.Start(ctx)

		p.Close()
		cancel()
		p.WaitClosed()
	}
}

func TestProducerShutdownCancelThenClose(t *testing.T) {
	log := discardLogger()
	for i := 0; i < 100; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		p := NewProducer([]string{"localhost:0"}, "orders.test", 8, log)
		p.Start(ctx)

		cancel()
		p.Close()
		p.WaitClosed()
	}
}
