// Package route resolves inbound request paths to backend services
// using an ordered list of path-prefix rules.
package route

import (
	"errors"
	"strings"

	"github.com/edgebound/gateway/internal/config"
)

// Sentinel errors for route resolution.
var (
	// ErrRouteNotFound indicates that no rule prefix matches the path.
	ErrRouteNotFound = errors.New("no matching route")

	// ErrServiceNotRegistered indicates that a rule matched but its
	// target service is unknown. This is a configuration error, not a
	// client error.
	ErrServiceNotRegistered = errors.New("route target service not registered")
)

// Rule maps a path prefix to a backend service.
type Rule struct {
	Prefix       string
	Service      string
	StripPrefix  bool
	AuthRequired bool
}

// Resolution is the outcome of resolving a path.
type Resolution struct {
	// Rule is the matched rule.
	Rule Rule

	// Service is the target service name.
	Service string

	// TargetPath is the path forwarded to the backend.
	TargetPath string
}

// ServiceLookup reports whether a service name is registered.
type ServiceLookup interface {
	Has(name string) bool
}

// Table is a static ordered route table. Rules are evaluated in
// declared order, first match wins.
type Table struct {
	rules    []Rule
	services ServiceLookup
}

// NewTable builds a table from route configuration. The service lookup
// is an explicit dependency so tables can be constructed against
// isolated registries in tests.
func NewTable(routes []config.RouteConfig, services ServiceLookup) *Table {
	rules := make([]Rule, 0, len(routes))
	for _, rc := range routes {
		rules = append(rules, Rule{
			Prefix:       rc.Prefix,
			Service:      rc.Service,
			StripPrefix:  rc.StripPrefix,
			AuthRequired: rc.AuthRequired,
		})
	}
	return &Table{rules: rules, services: services}
}

// Rules returns the declared rules in order.
func (t *Table) Rules() []Rule {
	return t.rules
}

// Resolve finds the first rule whose prefix is a prefix of path and
// computes the target path. Resolution is a pure function of the
// static rule sequence.
func (t *Table) Resolve(path string) (*Resolution, error) {
	for _, rule := range t.rules {
		if !strings.HasPrefix(path, rule.Prefix) {
			continue
		}

		if !t.services.Has(rule.Service) {
			return nil, ErrServiceNotRegistered
		}

		targetPath := path
		if rule.StripPrefix {
			targetPath = strings.TrimPrefix(path, rule.Prefix)
			if !strings.HasPrefix(targetPath, "/") {
				targetPath = "/" + targetPath
			}
		}

		return &Resolution{
			Rule:       rule,
			Service:    rule.Service,
			TargetPath: targetPath,
		}, nil
	}

	return nil, ErrRouteNotFound
}
