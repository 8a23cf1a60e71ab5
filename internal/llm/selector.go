package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/coursecreator/internal/chunking"
)

// ProviderID names an upstream model provider.
type ProviderID string

const (
	ProviderOpenAI ProviderID = "openai"
	ProviderGemini ProviderID = "gemini"
)

// ErrNoProvider is returned when a router has no provider to call.
var ErrNoProvider = errors.New("no model provider configured")

// Selector chooses the provider for an operation given the size of the
// content it will carry. It must be a pure function.
type Selector func(operation string, contentSize int) ProviderID

// DefaultSelector sends anything over the OpenAI request budget to Gemini.
func DefaultSelector(operation string, contentSize int) ProviderID {
	if contentSize > chunking.OpenAIMaxChunkSize {
		return ProviderGemini
	}
	return ProviderOpenAI
}

// Budget returns the chunking config sized for the provider.
func (p ProviderID) Budget() chunking.Config {
	return chunking.BudgetFor(string(p))
}

// failoverOrder is the order remaining providers are tried in after the
// selected one fails.
var failoverOrder = []ProviderID{ProviderOpenAI, ProviderGemini}

// Middleware wraps a provider's RequestFunc.
type Middleware func(RequestFunc) RequestFunc

// Router dispatches requests to registered providers.
type Router struct {
	providers  map[ProviderID]RequestFunc
	selector   Selector
	middleware []Middleware
}

// NewRouter returns a router using selector, or DefaultSelector when nil.
func NewRouter(selector Selector) *Router {
	if selector == nil {
		selector = DefaultSelector
	}
	return &Router{
		providers: make(map[ProviderID]RequestFunc),
		selector:  selector,
	}
}

// Register adds or replaces a provider.
func (r *Router) Register(id ProviderID, fn RequestFunc) {
	if fn == nil {
		return
	}
	r.providers[id] = fn
}

// Use wraps every provider call made by the router. Middleware applies to
// each provider separately, innermost first, so a retry timeout spent on one
// provider does not consume the next one's.
func (r *Router) Use(mw ...Middleware) {
	r.middleware = append(r.middleware, mw...)
}

// Has reports whether a provider is registered.
func (r *Router) Has(id ProviderID) bool {
	_, ok := r.providers[id]
	return ok
}

// Select returns the provider that For would try first.
func (r *Router) Select(operation string, contentSize int) (ProviderID, error) {
	order := r.order(r.selector(operation, contentSize), contentSize)
	if len(order) == 0 {
		return "", ErrNoProvider
	}
	return order[0], nil
}

// order starts with first, or the first registered provider when first is
// not registered. Failover providers whose budget cannot hold requestSize
// are left out.
func (r *Router) order(first ProviderID, requestSize int) []ProviderID {
	var order []ProviderID
	if r.Has(first) {
		order = append(order, first)
	}
	for _, id := range failoverOrder {
		if id == first || !r.Has(id) {
			continue
		}
		if len(order) > 0 && requestSize > id.Budget().MaxChunkSize {
			continue
		}
		order = append(order, id)
	}
	return order
}

func (r *Router) call(id ProviderID) RequestFunc {
	fn := r.providers[id]
	for _, mw := range r.middleware {
		fn = mw(fn)
	}
	return fn
}

// For returns a RequestFunc for operation that calls the selected provider and
// fails over to the others in order when it errors.
func (r *Router) For(operation string, contentSize int) RequestFunc {
	return r.Failover(operation, r.selector(operation, contentSize), contentSize)
}

// Failover returns a RequestFunc that calls first and then every other
// provider whose budget holds requestSize, stopping at the first success or
// when ctx is done.
func (r *Router) Failover(operation string, first ProviderID, requestSize int) RequestFunc {
	order := r.order(first, requestSize)
	calls := make([]RequestFunc, len(order))
	for i, id := range order {
		calls[i] = r.call(id)
	}
	return func(ctx context.Context, prompt string) (string, error) {
		if len(order) == 0 {
			return "", ErrNoProvider
		}
		var errs []error
		for i, id := range order {
			text, err := calls[i](ctx, prompt)
			if err == nil {
				if i > 0 {
					slog.Info("Request served by failover provider.", "operation", operation, "provider", id)
				}
				return text, nil
			}
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
			if ctx.Err() != nil {
				break
			}
			slog.Warn("Provider request failed.", "operation", operation, "provider", id, "error", err)
		}
		return "", fmt.Errorf("all providers failed for %s: %w", operation, errors.Join(errs...))
	}
}
