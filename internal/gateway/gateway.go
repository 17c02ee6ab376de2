package gateway

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Operation names a call offered by a gateway adapter.
type Operation string

const (
	OpAuthorize         Operation = "authorize"
	OpCompleteAuthorize Operation = "completeAuthorize"
	OpCapture           Operation = "capture"
	OpPurchase          Operation = "purchase"
	OpCompletePurchase  Operation = "completePurchase"
	OpCreateCard        Operation = "createCard"
	OpUpdateCard        Operation = "updateCard"
	OpDeleteCard        Operation = "deleteCard"
)

// Params is a settings or call-parameter map as understood by gateway adapters.
type Params map[string]any

// Clone returns a shallow copy. A nil receiver yields an empty map.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge copies every key of overlay into p, replacing existing values.
func (p Params) Merge(overlay map[string]any) Params {
	for k, v := range overlay {
		p[k] = v
	}
	return p
}

// Keys returns the keys in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Gateway is the capability surface the processor needs from a payment provider adapter.
type Gateway interface {
	// Name is the canonical provider identifier, e.g. "PayPal_Express".
	Name() string
	// Initialize replaces the adapter settings.
	Initialize(settings Params)
	Parameters() Params
	Supports(op Operation) bool
	// Send performs op. A non-nil error means the provider could not be reached or answered garbage;
	// a declined payment is a Response, not an error.
	Send(ctx context.Context, op Operation, params Params) (Response, error)
}

// Response is a provider answer to a single call.
type Response interface {
	IsSuccessful() bool
	IsRedirect() bool
	IsCancelled() bool
	Message() string
	TransactionReference() string
	Data() map[string]any
	// RedirectURL, RedirectMethod and RedirectData describe the off-site hop when IsRedirect is true.
	RedirectURL() string
	RedirectMethod() string
	RedirectData() map[string]string
}

// StaticResponse is a plain Response value, handy for adapters that build answers in memory.
type StaticResponse struct {
	Successful     bool
	Redirect       bool
	Cancelled      bool
	Msg            string
	Reference      string
	Payload        map[string]any
	URL            string
	Method         string
	RedirectFields map[string]string
}

func (r StaticResponse) IsSuccessful() bool              { return r.Successful }
func (r StaticResponse) IsRedirect() bool                { return r.Redirect }
func (r StaticResponse) IsCancelled() bool               { return r.Cancelled }
func (r StaticResponse) Message() string                 { return r.Msg }
func (r StaticResponse) TransactionReference() string    { return r.Reference }
func (r StaticResponse) Data() map[string]any            { return r.Payload }
func (r StaticResponse) RedirectURL() string             { return r.URL }
func (r StaticResponse) RedirectData() map[string]string { return r.RedirectFields }

func (r StaticResponse) RedirectMethod() string {
	if r.Method == "" {
		return "GET"
	}
	return r.Method
}

// Factory creates uninitialised adapters by canonical name.
type Factory interface {
	Create(name string) (Gateway, error)
}

// Constructor builds a fresh adapter instance.
type Constructor func() Gateway

// Registry is a Factory backed by registered constructors.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// Register binds a canonical name to ctor, replacing any previous binding.
func (r *Registry) Register(name string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[name] = ctor
}

func (r *Registry) Create(name string) (Gateway, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAdapterNotRegistered, name)
	}
	return ctor(), nil
}
