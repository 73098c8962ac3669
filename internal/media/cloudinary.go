// cloudinary.go — бэкенд медиа-сервиса Cloudinary через REST API.
// Загрузка: POST {api}/v1_1/{cloud}/{image|video}/upload (multipart).
// Удаление: POST {api}/v1_1/{cloud}/{image|video}/destroy.
// Запросы подписываются SHA-1 от отсортированных параметров и API secret.
package media

import (
	"bytes"
	"context"
	"crypto/sha1" //nolint:gosec // G505: алгоритм подписи задан API медиа-сервиса
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bigkaa/goartstore/media-module/internal/domain/model"
)

// maxErrorBody — сколько байт тела ответа с ошибкой читать для диагностики.
const maxErrorBody = 4096

// CloudinaryConfig — параметры подключения к медиа-сервису.
type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	// APIURL — базовый URL API (https://api.cloudinary.com)
	APIURL string
	// Timeout — ограничение на один вызов
	Timeout time.Duration
}

// Cloudinary — реализация Uploader поверх REST API медиа-сервиса.
type Cloudinary struct {
	cfg        CloudinaryConfig
	httpClient *http.Client
	now        func() time.Time
	logger     *slog.Logger
}

// NewCloudinary создаёт клиент медиа-сервиса.
func NewCloudinary(cfg CloudinaryConfig, logger *slog.Logger) *Cloudinary {
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &Cloudinary{
		cfg: cfg,
		httpClient: &http.Client{
			Transport: &http.Transport{MaxIdleConnsPerHost: 10},
		},
		now:    time.Now,
		logger: logger.With(slog.String("component", "cloudinary")),
	}
}

// uploadResponse — поля ответа upload API, которые используются модулем.
type uploadResponse struct {
	PublicID     string  `json:"public_id"`
	Bytes        int64   `json:"bytes"`
	Duration     float64 `json:"duration"`
	Format       string  `json:"format"`
	ResourceType string  `json:"resource_type"`
}

// errorResponse — тело ответа медиа-сервиса с ошибкой.
type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Upload загружает payload одним multipart-запросом.
func (c *Cloudinary) Upload(ctx context.Context, payload []byte, kind model.MediaKind, opts Options) (*model.UploadResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	params := map[string]string{
		"timestamp": strconv.FormatInt(c.now().Unix(), 10),
	}
	if opts.Folder != "" {
		params["folder"] = opts.Folder
	}
	if opts.Transformation != "" {
		params["transformation"] = opts.Transformation
	}
	params["signature"] = c.sign(params)
	params["api_key"] = c.cfg.APIKey

	body, contentType, err := buildMultipart(params, payload, opts.Filename)
	if err != nil {
		return nil, uploadFailure("формирование запроса: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(kind, "upload"), body)
	if err != nil {
		return nil, uploadFailure("создание запроса: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		return nil, uploadFailure("запрос upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, uploadFailure("медиа-сервис вернул %d: %s", resp.StatusCode, readErrorMessage(resp.Body))
	}

	var result uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, uploadFailure("декодирование ответа: %w", err)
	}
	if result.PublicID == "" {
		return nil, uploadFailure("ответ без public_id")
	}

	c.logger.Debug("Ассет загружен",
		slog.String("public_id", result.PublicID),
		slog.String("kind", string(kind)),
		slog.Int64("bytes", result.Bytes),
		slog.Duration("duration", time.Since(start)),
	)

	return &model.UploadResult{
		PublicID: result.PublicID,
		Bytes:    result.Bytes,
		Duration: result.Duration,
		Format:   result.Format,
		Kind:     kind,
	}, nil
}

// Destroy удаляет ассет. Ответ "not found" считается успехом.
func (c *Cloudinary) Destroy(ctx context.Context, publicID string, kind model.MediaKind) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	params := map[string]string{
		"public_id": publicID,
		"timestamp": strconv.FormatInt(c.now().Unix(), 10),
	}
	params["signature"] = c.sign(params)
	params["api_key"] = c.cfg.APIKey

	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(kind, "destroy"),
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("создание запроса destroy: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		return fmt.Errorf("запрос destroy: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("destroy вернул %d: %s", resp.StatusCode, readErrorMessage(resp.Body))
	}

	var result struct {
		Result string `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("декодирование ответа destroy: %w", err)
	}
	if result.Result != "ok" && result.Result != "not found" {
		return fmt.Errorf("destroy: неожиданный результат %q", result.Result)
	}
	return nil
}

// endpoint формирует URL метода API для типа ресурса.
func (c *Cloudinary) endpoint(kind model.MediaKind, action string) string {
	return fmt.Sprintf("%s/v1_1/%s/%s/%s", c.cfg.APIURL, url.PathEscape(c.cfg.CloudName), kind, action)
}

// sign вычисляет подпись: sha1("k1=v1&k2=v2..." + secret), ключи по алфавиту.
// file, api_key и resource_type в подпись не входят.
func (c *Cloudinary) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + c.cfg.APISecret)) //nolint:gosec // см. импорт
	return hex.EncodeToString(sum[:])
}

// buildMultipart собирает тело multipart/form-data с полями и файлом.
func buildMultipart(params map[string]string, payload []byte, filename string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range params {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}

	if filename == "" {
		filename = "blob"
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(payload); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return &buf, w.FormDataContentType(), nil
}

// readErrorMessage извлекает error.message из тела ответа или возвращает его начало.
func readErrorMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var e errorResponse
	if json.Unmarshal(raw, &e) == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return strings.TrimSpace(string(raw))
}
