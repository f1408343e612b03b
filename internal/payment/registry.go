package payment

import (
	"fmt"
	"log"
	"net/http"
	"sort"

	"github.com/papegu/senegal-livres/internal/config"
	"github.com/papegu/senegal-livres/internal/model"
)

// Registry resolves a payment method tag to its adapter.  Methods whose
// adapter could not be built are kept with the reason so callers get
// ErrMethodUnavailable instead of ErrUnknownMethod.
type Registry struct {
	providers   map[model.PaymentMethod]Provider
	unavailable map[model.PaymentMethod]error
}

func NewRegistry() *Registry {
	return &Registry{
		providers:   map[model.PaymentMethod]Provider{},
		unavailable: map[model.PaymentMethod]error{},
	}
}

// Register adds p, replacing any previous adapter for the same method.
func (r *Registry) Register(p Provider) {
	r.providers[p.Method()] = p
	delete(r.unavailable, p.Method())
}

// MarkUnavailable records that m exists but cannot be used.
func (r *Registry) MarkUnavailable(m model.PaymentMethod, reason error) {
	delete(r.providers, m)
	r.unavailable[m] = reason
}

// Get returns the adapter for m.
func (r *Registry) Get(m model.PaymentMethod) (Provider, error) {
	if p, ok := r.providers[m]; ok {
		return p, nil
	}
	if reason, ok := r.unavailable[m]; ok {
		return nil, fmt.Errorf("%w: %s: %w", ErrMethodUnavailable, m, reason)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, m)
}

// Methods lists the usable methods in a stable order.
func (r *Registry) Methods() []model.PaymentMethod {
	out := make([]model.PaymentMethod, 0, len(r.providers))
	for m := range r.providers {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// FromConfig builds every adapter the configuration allows.  A provider
// with missing credentials is logged and marked unavailable; it never
// stops the process from starting.
func FromConfig(cfg config.Config) *Registry {
	money := Money{Currency: cfg.Currency, Exponent: cfg.CurrencyExponent}
	client := &http.Client{Timeout: cfg.ProviderTimeout}
	r := NewRegistry()

	add := func(m model.PaymentMethod, p Provider, err error) {
		if err != nil {
			log.Printf("payment: %s unavailable: %v", m, err)
			r.MarkUnavailable(m, err)
			return
		}
		r.Register(p)
	}
	pd, err := NewPayDunya(cfg.PayDunya, money, client)
	add(model.MethodPayDunya, pd, err)
	wv, err := NewWave(cfg.Wave, money, client)
	add(model.MethodWave, wv, err)
	om, err := NewOrangeMoney(cfg.OrangeMoney, money, client)
	add(model.MethodOrangeMoney, om, err)
	cd, err := NewCard(cfg.Card, money, client)
	add(model.MethodCard, cd, err)

	if cfg.Sandbox {
		r.Register(NewSandbox(cfg.APIBaseURL))
	} else {
		r.MarkUnavailable(model.MethodSandbox, fmt.Errorf("sandbox payments disabled"))
	}
	return r
}
