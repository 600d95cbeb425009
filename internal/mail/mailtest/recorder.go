// Package mailtest records outbound email for assertions.
package mailtest

import (
	"context"
	"sync"

	"parcels/internal/mail"
)

type Recorder struct {
	mu   sync.Mutex
	sent []mail.Message
	Err  error
}

func (r *Recorder) Send(_ context.Context, msg mail.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return r.Err
}

func (r *Recorder) Sent() []mail.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mail.Message(nil), r.sent...)
}

// ByTemplate returns the messages rendered from one template.
func (r *Recorder) ByTemplate(name string) []mail.Message {
	var out []mail.Message
	for _, m := range r.Sent() {
		if m.Template == name {
			out = append(out, m)
		}
	}
	return out
}
