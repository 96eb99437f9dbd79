package notify

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-retail-orders/internal/mail"
)

// EmailQueue hands a message to the background mail task.
type EmailQueue interface {
	EnqueueEmail(ctx context.Context, m mail.Message) (string, error)
}

const subjectOrderUpdate = "Order status update"

// NewEmailBus returns a bus with every email listener registered.
func NewEmailBus(q EmailQueue, b *Bus) *Bus {
	l := emailListeners{q: q}
	b.Subscribe(KindUserRegistered, l.userRegistered)
	b.Subscribe(KindOrderPlaced, l.orderPlaced)
	b.Subscribe(KindOrderStatusChanged, l.orderStatusChanged)
	b.Subscribe(KindPartnerOrdersLoaded, l.partnerOrdersLoaded)
	b.Subscribe(KindPasswordReset, l.passwordReset)
	return b
}

type emailListeners struct{ q EmailQueue }

func (l emailListeners) send(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return nil
	}
	_, err := l.q.EnqueueEmail(ctx, mail.Message{To: to, Subject: subject, Body: body})
	return err
}

func (l emailListeners) userRegistered(ctx context.Context, e Event) error {
	ev := e.(UserRegistered)
	return l.send(ctx, ev.Email, "Confirmation of registration",
		fmt.Sprintf("Your confirmation token %s", ev.ConfirmToken))
}

func (l emailListeners) orderPlaced(ctx context.Context, e Event) error {
	ev := e.(OrderPlaced)
	return l.send(ctx, ev.Email, subjectOrderUpdate,
		fmt.Sprintf("The basket has been processed. The order [%d] has been formed", ev.OrderID))
}

func (l emailListeners) orderStatusChanged(ctx context.Context, e Event) error {
	ev := e.(OrderStatusChanged)
	return l.send(ctx, ev.Email, "Order status changed",
		fmt.Sprintf("The order [%d] is now %s", ev.OrderID, ev.Status))
}

func (l emailListeners) partnerOrdersLoaded(ctx context.Context, e Event) error {
	ev := e.(PartnerOrdersLoaded)
	if err := l.send(ctx, ev.RetailerEmail, subjectOrderUpdate, "The order(s) is(are) loaded"); err != nil {
		return err
	}
	for _, to := range ev.ClientEmails {
		if err := l.send(ctx, to, subjectOrderUpdate, "The order(s) processing started"); err != nil {
			return err
		}
	}
	return nil
}

func (l emailListeners) passwordReset(ctx context.Context, e Event) error {
	ev := e.(PasswordResetRequested)
	return l.send(ctx, ev.Email, fmt.Sprintf("Password Reset Token for %s", ev.Email), ev.Token)
}
