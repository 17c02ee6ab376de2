// Package event broadcasts payment lifecycle events to registered listeners.
package event

import (
	"context"
	"sync"
	"time"
)

// Event names.
const (
	AuthorizeInitiate = "payment.authorize.initiate"
	AuthorizeSuccess  = "payment.authorize.success"
	AuthorizeFailure  = "payment.authorize.failure"
	CaptureInitiate   = "payment.capture.initiate"
	CaptureSuccess    = "payment.capture.success"
	CaptureFailure    = "payment.capture.failure"
	CreateInitiate    = "payment.create.initiate"
	CreateSuccess     = "payment.create.success"
	CreateFailure     = "payment.create.failure"
	UpdateInitiate    = "payment.update.initiate"
	UpdateSuccess     = "payment.update.success"
	UpdateFailure     = "payment.update.failure"
	DeleteInitiate    = "payment.delete.initiate"
	DeleteSuccess     = "payment.delete.success"
	DeleteFailure     = "payment.delete.failure"
	PurchaseInitiate  = "payment.purchase.initiate"
	PurchaseSuccess   = "payment.purchase.success"
	PurchaseFailure   = "payment.purchase.failure"
	PurchaseCancel    = "payment.purchase.cancel"
)

// Stage of an operation an event reports.
type Stage string

const (
	StageInitiate Stage = "initiate"
	StageSuccess  Stage = "success"
	StageFailure  Stage = "failure"
	StageCancel   Stage = "cancel"
)

var subjects = map[string]string{
	"authorize":  "authorize",
	"capture":    "capture",
	"createCard": "create",
	"updateCard": "update",
	"deleteCard": "delete",
	"purchase":   "purchase",
}

// Name returns the event name for an operation and stage, e.g. ("createCard", success) -> payment.create.success.
// Completion operations report under their base operation.
func Name(method string, stage Stage) string {
	subject, ok := subjects[method]
	if !ok {
		subject = method
	}
	return "payment." + subject + "." + string(stage)
}

// Event is one payment lifecycle notification.
type Event struct {
	Name                 string
	OccurredAt           time.Time
	Gateway              string
	Method               string
	CustomerID           string
	TransactionID        string
	TransactionReference string
	Amount               string
	Currency             string
	Message              string
}

// Sink receives events. Dispatch is synchronous and returns nothing to the caller.
type Sink interface {
	Dispatch(ctx context.Context, e Event)
}

// Listener handles a dispatched event.
type Listener interface {
	Handle(ctx context.Context, e Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, e Event)

func (f ListenerFunc) Handle(ctx context.Context, e Event) { f(ctx, e) }

// Dispatcher fans events out to listeners in registration order.
// A panicking listener propagates to the caller.
type Dispatcher struct {
	mu     sync.RWMutex
	byName map[string][]Listener
	all    []Listener
	now    func() time.Time
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{byName: make(map[string][]Listener), now: time.Now}
}

// Listen registers l for events named name.
func (d *Dispatcher) Listen(name string, l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byName[name] = append(d.byName[name], l)
}

// ListenAll registers l for every event.
func (d *Dispatcher) ListenAll(l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.all = append(d.all, l)
}

func (d *Dispatcher) Dispatch(ctx context.Context, e Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = d.now().UTC()
	}

	d.mu.RLock()
	listeners := make([]Listener, 0, len(d.all)+len(d.byName[e.Name]))
	listeners = append(listeners, d.all...)
	listeners = append(listeners, d.byName[e.Name]...)
	d.mu.RUnlock()

	for _, l := range listeners {
		l.Handle(ctx, e)
	}
}

// Discard drops every event.
var Discard Sink = discard{}

type discard struct{}

func (discard) Dispatch(context.Context, Event) {}
