package access

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

const routeModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && keyMatch2(r.obj, p.obj) && (p.act == "*" || r.act == p.act)
`

// Rule grants a capability access to a route pattern and method ("*" for any).
type Rule struct {
	Capability Capability
	Path       string
	Method     string
}

// DefaultRules is the route table of the HTTP API.
var DefaultRules = []Rule{
	{Guest, "/api/v1/services", "GET"},
	{Guest, "/api/v1/services/:id", "GET"},
	{Guest, "/api/v1/services/:id/quote", "GET"},
	{Guest, "/api/v1/identities", "POST"},
	{Guest, "/api/v1/me/capabilities", "GET"},
	{Guest, "/api/v1/sessions", "POST"},
	{Guest, "/api/v1/sessions/:id", "*"},
	{Guest, "/api/v1/sessions/:id/:action", "*"},

	{Traveller, "/api/v1/services", "GET"},
	{Traveller, "/api/v1/services/:id", "GET"},
	{Traveller, "/api/v1/services/:id/quote", "GET"},
	{Traveller, "/api/v1/me", "GET"},
	{Traveller, "/api/v1/me/capabilities", "GET"},
	{Traveller, "/api/v1/me/verify-email", "POST"},
	{Traveller, "/api/v1/sessions", "POST"},
	{Traveller, "/api/v1/sessions/:id", "*"},
	{Traveller, "/api/v1/sessions/:id/:action", "*"},

	{PendingProvider, "/api/v1/me/provider", "GET"},
	{ActiveProvider, "/api/v1/me/provider", "GET"},
	{ActiveProvider, "/api/v1/provider/*", "*"},

	// Admin supersedes every lower tier for routing.
	{Admin, "/api/v1/*", "*"},
}

// Guard answers route questions for a capability set.
type Guard struct {
	enforcer *casbin.Enforcer
}

func NewGuard(rules []Rule) (*Guard, error) {
	m, err := model.NewModelFromString(routeModel)
	if err != nil {
		return nil, fmt.Errorf("load route model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}
	for _, r := range rules {
		if _, err := e.AddPolicy(string(r.Capability), r.Path, r.Method); err != nil {
			return nil, fmt.Errorf("add route rule %s %s: %w", r.Method, r.Path, err)
		}
	}
	return &Guard{enforcer: e}, nil
}

// Allow reports whether any capability of set may call method on path.
func (g *Guard) Allow(set Set, path, method string) bool {
	for _, c := range set.List() {
		ok, err := g.enforcer.Enforce(string(c), path, method)
		if err == nil && ok {
			return true
		}
	}
	return false
}
