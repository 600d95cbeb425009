// Package paymenttest provides an in-memory payment.Provider.
package paymenttest

import (
	"context"
	"fmt"
	"sync"

	"parcels/internal/payment"
)

type Fake struct {
	mu       sync.Mutex
	seq      int
	Sessions map[string]*payment.Payment
	Requests []payment.CheckoutRequest
	Accounts []string

	// WebhookEvents maps a signature to the event ParseWebhook returns.
	WebhookEvents map[string]*payment.Event
	// WebhookErrors maps a signature to the error ParseWebhook returns.
	WebhookErrors map[string]error
	Err           error
}

func New() *Fake {
	return &Fake{
		Sessions:      map[string]*payment.Payment{},
		WebhookEvents: map[string]*payment.Event{},
		WebhookErrors: map[string]error{},
	}
}

func (f *Fake) CreateCheckout(_ context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.seq++
	id := fmt.Sprintf("cs_test_%d", f.seq)
	meta := map[string]string{payment.MetaKind: req.Kind}
	for k, v := range req.Metadata {
		meta[k] = v
	}
	f.Requests = append(f.Requests, req)
	f.Sessions[id] = &payment.Payment{
		SessionID: id,
		Email:     req.Email,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Metadata:  meta,
	}
	return &payment.CheckoutSession{ID: id, URL: "https://pay.test/" + id}, nil
}

// Complete marks a session paid, as if the buyer finished checkout.
func (f *Fake) Complete(id string) *payment.Payment {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.Sessions[id]
	if p != nil {
		p.Paid = true
	}
	return p
}

func (f *Fake) GetPayment(_ context.Context, id string) (*payment.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.Sessions[id]
	if !ok {
		return nil, payment.ErrSessionNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *Fake) ParseWebhook(_ []byte, signature string) (*payment.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.WebhookErrors[signature]; ok {
		return nil, err
	}
	ev, ok := f.WebhookEvents[signature]
	if !ok {
		return nil, payment.ErrInvalidSignature
	}
	return ev, nil
}

func (f *Fake) CreateConnectedAccount(_ context.Context, email string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("acct_test_%d", len(f.Accounts)+1)
	f.Accounts = append(f.Accounts, id)
	return id, nil
}

func (f *Fake) CreateOnboardingLink(_ context.Context, account, _, _ string) (string, error) {
	return "https://connect.test/onboard/" + account, nil
}
