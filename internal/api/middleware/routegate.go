// routegate.go — Route Gate: перенаправления по статусу аутентификации.
// Выполняется после Identity Gate и до handlers.
//
// Правила (по порядку):
//  1. аутентифицирован, путь публичный и не "/" → redirect на "/";
//  2. не аутентифицирован, путь не публичный и не публичный API → redirect на /sign-in;
//  3. не аутентифицирован, путь под /api и не публичный API → redirect на /sign-in;
//  4. иначе запрос проходит.
//
// Запись маршрута, оканчивающаяся на "(.*)", совпадает по префиксу,
// остальные — точно.
package middleware

import (
	"log/slog"
	"net/http"
	"path"
	"strings"
)

const (
	// SignInPath — куда отправляются анонимные пользователи.
	SignInPath = "/sign-in"
	// HomePath — куда отправляются аутентифицированные с публичных страниц.
	HomePath = "/"

	prefixSuffix = "(.*)"
)

// routeMatcher — набор маршрутов с точным и префиксным совпадением.
type routeMatcher struct {
	exact    map[string]bool
	prefixes []string
}

func newRouteMatcher(routes []string) routeMatcher {
	m := routeMatcher{exact: make(map[string]bool, len(routes))}
	for _, r := range routes {
		if p, ok := strings.CutSuffix(r, prefixSuffix); ok {
			m.prefixes = append(m.prefixes, p)
			continue
		}
		m.exact[r] = true
	}
	return m
}

func (m routeMatcher) match(p string) bool {
	if m.exact[p] {
		return true
	}
	for _, prefix := range m.prefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// RouteGate — middleware перенаправлений.
type RouteGate struct {
	public    routeMatcher
	publicAPI routeMatcher
	logger    *slog.Logger
}

// NewRouteGate создаёт Route Gate.
// publicRoutes — публичные страницы, publicAPIRoutes — публичные API.
func NewRouteGate(publicRoutes, publicAPIRoutes []string, logger *slog.Logger) *RouteGate {
	return &RouteGate{
		public:    newRouteMatcher(publicRoutes),
		publicAPI: newRouteMatcher(publicAPIRoutes),
		logger:    logger.With(slog.String("component", "route_gate")),
	}
}

// Middleware возвращает HTTP middleware. Требует Identity Gate перед собой.
// Redirect — 307, метод и тело запроса сохраняются.
func (g *RouteGate) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := r.URL.Path
			if isExcludedPath(p) {
				next.ServeHTTP(w, r)
				return
			}

			if target, ok := g.decide(p, IdentityFromContext(r.Context()) != nil); ok {
				g.logger.Debug("Redirect",
					slog.String("path", p),
					slog.String("target", target),
				)
				http.Redirect(w, r, target, http.StatusTemporaryRedirect)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// decide возвращает цель redirect и true, либо false, если запрос проходит.
func (g *RouteGate) decide(p string, authenticated bool) (string, bool) {
	isPublic := g.public.match(p)
	isPublicAPI := g.publicAPI.match(p)

	switch {
	case authenticated && isPublic && p != HomePath:
		return HomePath, true
	case !authenticated && !isPublic && !isPublicAPI:
		return SignInPath, true
	case !authenticated && isAPIPath(p) && !isPublicAPI:
		return SignInPath, true
	}
	return "", false
}

// isAPIPath — путь равен /api или лежит под /api/.
func isAPIPath(p string) bool {
	return p == "/api" || strings.HasPrefix(p, "/api/")
}

// isExcludedPath — инфраструктурные пути и статические ассеты
// (последний сегмент содержит точку, или путь под /_next).
// Пути под /api проверяются всегда, даже с точкой в имени.
func isExcludedPath(p string) bool {
	switch {
	case strings.HasPrefix(p, "/health/"), p == "/metrics":
		return true
	case p == "/_next" || strings.HasPrefix(p, "/_next/"):
		return true
	}
	return !isAPIPath(p) && strings.Contains(path.Base(p), ".")
}
