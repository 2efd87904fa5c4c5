package notify

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// EmailNotifier sends through SMTP. Messages are deliberately plain; the
// storefront owns branded templates.
type EmailNotifier struct {
	dialer *gomail.Dialer
	from   string
}

func NewEmailNotifier(cfg SMTPConfig) *EmailNotifier {
	return &EmailNotifier{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass),
		from:   cfg.From,
	}
}

func (n *EmailNotifier) SendCode(_ context.Context, destination, code string) error {
	body := fmt.Sprintf("Your verification code is %s. It expires in 10 minutes.", code)
	return n.send(destination, "Your login code", body)
}

func (n *EmailNotifier) SendOrderConfirmation(_ context.Context, destination, name, orderID string, totalCents int) error {
	body := fmt.Sprintf("Hi %s,\n\nwe received your order %s (total %d.%02d). We'll let you know when it ships.",
		name, orderID, totalCents/100, totalCents%100)
	return n.send(destination, "Order received", body)
}

func (n *EmailNotifier) SendDeliveryUpdate(_ context.Context, destination, name, orderID, status string) error {
	body := fmt.Sprintf("Hi %s,\n\nyour order %s is now %s.", name, orderID, status)
	return n.send(destination, "Order update", body)
}

func (n *EmailNotifier) send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return n.dialer.DialAndSend(m)
}
