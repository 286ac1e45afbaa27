// Package tools routes LLM function calls to domain services.
package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	chatv1 "bankassist/contracts/chat/v1"
)

// ErrUnknownTool is returned when no registered service owns a tool name.
var ErrUnknownTool = errors.New("unknown tool")

// Service is a domain-specific tool provider.
type Service interface {
	// Domain identifies the service (e.g. "authentication", "account").
	Domain() string

	// Tools lists the function-calling definitions this service owns.
	Tools() []chatv1.Tool

	// Execute runs one tool. Results must be JSON-marshalable; they are
	// serialized verbatim into the conversation as tool responses.
	Execute(ctx context.Context, name string, args map[string]any) (any, error)
}

// Registry holds every service and dispatches tool calls by name.
type Registry struct {
	log      *slog.Logger
	services map[string]Service
	order    []string // registration order, kept for deterministic tool listings
}

// NewRegistry constructs an empty Registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{log: log, services: make(map[string]Service)}
}

// Register adds a service, replacing any previous one for the same domain.
func (r *Registry) Register(s Service) {
	domain := s.Domain()
	if _, exists := r.services[domain]; !exists {
		r.order = append(r.order, domain)
	}
	r.services[domain] = s
	r.log.Info("registry.service.registered", "domain", domain)
}

// Service returns the service for a domain, or nil.
func (r *Registry) Service(domain string) Service {
	return r.services[domain]
}

// Domains lists registered domains in registration order.
func (r *Registry) Domains() []string {
	return append([]string(nil), r.order...)
}

// Tools returns tool definitions for the given domains (all when empty),
// de-duplicated by function name so shared tools appear once.
func (r *Registry) Tools(domains ...string) []chatv1.Tool {
	if len(domains) == 0 {
		domains = r.order
	}

	seen := make(map[string]bool)
	var out []chatv1.Tool
	for _, d := range domains {
		s := r.services[d]
		if s == nil {
			continue
		}
		for _, tool := range s.Tools() {
			if seen[tool.Function.Name] {
				continue
			}
			seen[tool.Function.Name] = true
			out = append(out, tool)
		}
	}
	return out
}

// Execute dispatches a tool call to whichever service advertises the name.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	for _, d := range r.order {
		s := r.services[d]
		for _, tool := range s.Tools() {
			if tool.Function.Name != name {
				continue
			}
			r.log.Info("registry.tool.execute", "tool", name, "domain", d)
			return s.Execute(ctx, name, args)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
}
