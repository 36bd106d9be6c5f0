package httpapi

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
)

// URLGenerator resolves named echo routes into callback URLs. It is created
// before the router so sync adapters can hold it, and attached once the
// routes are registered.
type URLGenerator struct {
	baseURL string

	mu     sync.RWMutex
	routes map[string]string
}

func NewURLGenerator(baseURL string) *URLGenerator {
	return &URLGenerator{baseURL: strings.TrimRight(baseURL, "/")}
}

// Attach indexes the named routes of e.
func (g *URLGenerator) Attach(e *echo.Echo) {
	routes := make(map[string]string)
	for _, r := range e.Routes() {
		if r.Name != "" {
			routes[r.Name] = r.Path
		}
	}
	g.mu.Lock()
	g.routes = routes
	g.mu.Unlock()
}

// Generate fills the :params of the named route. Absolute URLs are prefixed
// with the public base URL.
func (g *URLGenerator) Generate(routeName string, params map[string]string, absolute bool) (string, error) {
	g.mu.RLock()
	pattern, ok := g.routes[routeName]
	g.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown route %q", routeName)
	}

	segments := strings.Split(pattern, "/")
	for i, seg := range segments {
		if !strings.HasPrefix(seg, ":") {
			continue
		}
		name := seg[1:]
		v, ok := params[name]
		if !ok || v == "" {
			return "", fmt.Errorf("route %q: missing parameter %q", routeName, name)
		}
		segments[i] = url.PathEscape(v)
	}
	path := strings.Join(segments, "/")
	if !absolute {
		return path, nil
	}
	if g.baseURL == "" {
		return "", fmt.Errorf("route %q: no public base URL configured", routeName)
	}
	return g.baseURL + path, nil
}
