// identity.go — Identity Gate: извлечение identity вызывающего из session JWT
// провайдера идентичности. Подпись проверяется по JWKS провайдера (RS256).
//
// Middleware никогда не отклоняет запрос сам: отсутствующий, невалидный или
// просроченный токен означает анонимный запрос. Решение принимают
// Route Gate и handlers через IdentityFromContext.
package middleware

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyIdentity — identity вызывающего в контексте запроса.
	ContextKeyIdentity contextKey = "identity"
)

// SessionCookieName — cookie с session JWT, если нет заголовка Authorization.
const SessionCookieName = "__session"

// Identity — аутентифицированный пользователь. Не сохраняется.
type Identity struct {
	// UserID — sub из JWT.
	UserID string
	// SessionID — sid из JWT (может быть пустым).
	SessionID string
}

// sessionClaims — claims session JWT провайдера.
type sessionClaims struct {
	jwt.RegisteredClaims
	// AuthorizedParty — origin фронтенда, для которого выпущен токен.
	AuthorizedParty string `json:"azp,omitempty"`
	// SessionID — идентификатор сессии.
	SessionID string `json:"sid,omitempty"`
}

// IdentityGate — middleware определения identity через JWKS.
type IdentityGate struct {
	jwks              keyfunc.Keyfunc
	issuer            string
	authorizedParties []string
	leeway            time.Duration
	logger            *slog.Logger
}

// IdentityGateOptions — параметры проверки токенов.
type IdentityGateOptions struct {
	// Issuer — ожидаемый iss (пусто — не проверяется).
	Issuer string
	// AuthorizedParties — допустимые azp (пусто — не проверяется).
	AuthorizedParties []string
	// Leeway — допустимое отклонение часов.
	Leeway time.Duration
}

// NewIdentityGate создаёт Identity Gate с JWKS провайдера.
// jwksURL — URL JWKS endpoint; caCertPath — опциональный CA для TLS.
func NewIdentityGate(
	jwksURL string,
	caCertPath string,
	jwksClientTimeout time.Duration,
	jwksRefreshInterval time.Duration,
	opts IdentityGateOptions,
	logger *slog.Logger,
) (*IdentityGate, error) {
	httpClient := &http.Client{Timeout: jwksClientTimeout}
	if caCertPath != "" {
		var err error
		httpClient, err = httpClientWithCA(caCertPath, jwksClientTimeout)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата %s: %w", caCertPath, err)
		}
		logger.Info("CA-сертификат для JWKS добавлен в пул доверия",
			slog.String("ca_cert", caCertPath),
		)
	}

	// NoErrorReturnFirstHTTPReq — стартуем даже если провайдер ещё недоступен.
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    httpClient,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           jwksRefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return NewIdentityGateWithKeyfunc(k, opts, logger), nil
}

// NewIdentityGateWithKeyfunc создаёт Identity Gate с готовой keyfunc.
// Используется в тестах со статическим JWKS.
func NewIdentityGateWithKeyfunc(kf keyfunc.Keyfunc, opts IdentityGateOptions, logger *slog.Logger) *IdentityGate {
	return &IdentityGate{
		jwks:              kf,
		issuer:            opts.Issuer,
		authorizedParties: opts.AuthorizedParties,
		leeway:            opts.Leeway,
		logger:            logger.With(slog.String("component", "identity_gate")),
	}
}

// httpClientWithCA создаёт HTTP-клиент с кастомным CA-сертификатом.
func httpClientWithCA(caCertPath string, timeout time.Duration) (*http.Client, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, err
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	caCertPool.AppendCertsFromPEM(caCert)

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs: caCertPool,
			},
		},
	}, nil
}

// Middleware помещает identity в контекст, если токен валиден.
// Анонимные запросы проходят дальше без identity.
func (g *IdentityGate) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := g.Identify(r); id != nil {
				r = r.WithContext(WithIdentity(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Identify проверяет токен запроса и возвращает identity или nil.
func (g *IdentityGate) Identify(r *http.Request) *Identity {
	tokenString := tokenFromRequest(r)
	if tokenString == "" {
		return nil
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(g.leeway),
	}
	if g.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(g.issuer))
	}

	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, g.jwks.KeyfuncCtx(r.Context()), parserOpts...)
	if err != nil || !token.Valid {
		g.logger.Debug("JWT валидация не пройдена",
			slog.Any("error", err),
			slog.String("remote_addr", r.RemoteAddr),
		)
		return nil
	}

	if len(g.authorizedParties) > 0 && !slices.Contains(g.authorizedParties, claims.AuthorizedParty) {
		g.logger.Debug("JWT выпущен для недопустимого azp",
			slog.String("azp", claims.AuthorizedParty),
			slog.String("remote_addr", r.RemoteAddr),
		)
		return nil
	}

	if claims.Subject == "" {
		g.logger.Debug("Отсутствует sub в токене", slog.String("remote_addr", r.RemoteAddr))
		return nil
	}

	return &Identity{UserID: claims.Subject, SessionID: claims.SessionID}
}

// tokenFromRequest извлекает токен: заголовок Authorization: Bearer
// имеет приоритет над cookie __session.
func tokenFromRequest(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return ""
		}
		return strings.TrimSpace(parts[1])
	}

	if c, err := r.Cookie(SessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

// --- Context helpers ---

// WithIdentity возвращает контекст с identity.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ContextKeyIdentity, id)
}

// IdentityFromContext извлекает identity из контекста запроса.
// Возвращает nil для анонимного запроса.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(ContextKeyIdentity).(*Identity)
	return id
}

// UserIDFromContext возвращает userId или пустую строку.
func UserIDFromContext(ctx context.Context) string {
	if id := IdentityFromContext(ctx); id != nil {
		return id.UserID
	}
	return ""
}

// --- ReadinessChecker для провайдера идентичности ---

// JWKSReadinessChecker — проверка доступности JWKS endpoint провайдера.
type JWKSReadinessChecker struct {
	jwksURL string
	client  *http.Client
}

// NewJWKSReadinessChecker создаёт checker доступности JWKS.
func NewJWKSReadinessChecker(jwksURL, caCertPath string, readinessTimeout time.Duration) (*JWKSReadinessChecker, error) {
	client := &http.Client{Timeout: readinessTimeout}
	if caCertPath != "" {
		var err error
		client, err = httpClientWithCA(caCertPath, readinessTimeout)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA для readiness checker: %w", err)
		}
	}

	return &JWKSReadinessChecker{
		jwksURL: jwksURL,
		client:  client,
	}, nil
}

const statusFail = "fail"

// CheckReady проверяет доступность JWKS endpoint.
func (k *JWKSReadinessChecker) CheckReady() (status, message string) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, k.jwksURL, http.NoBody)
	if err != nil {
		return statusFail, "ошибка создания запроса: " + err.Error()
	}
	resp, err := k.client.Do(req) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		return statusFail, fmt.Sprintf("JWKS недоступен: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusFail, fmt.Sprintf("JWKS вернул статус %d", resp.StatusCode)
	}

	var jwksResp struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwksResp); err != nil {
		return "degraded", fmt.Sprintf("JWKS: невалидный JSON: %v", err)
	}
	if len(jwksResp.Keys) == 0 {
		return "degraded", "JWKS: нет ключей"
	}

	return "ok", fmt.Sprintf("JWKS доступен, ключей: %d", len(jwksResp.Keys))
}
