// Пакет model — доменные модели Media Module.
// VideoRecord — маппинг таблицы videos.
package model

import (
	"math"
	"strconv"
	"time"
)

// VideoRecord — метаданные обработанного видео.
// Создаётся один раз после успешной загрузки в медиа-сервис, не обновляется.
// JSON-теги совместимы с клиентом dashboard.
type VideoRecord struct {
	// ID — UUID записи
	ID string `json:"id"`
	// UserID — владелец (sub из JWT); nil в глобальном режиме загрузки
	UserID *string `json:"userId"`
	// Title — заголовок, как прислал клиент
	Title string `json:"title"`
	// Description — описание, как прислал клиент
	Description string `json:"description"`
	// PublicID — идентификатор ассета в медиа-сервисе (уникален)
	PublicID string `json:"publicId"`
	// OriginalSize — исходный размер в байтах (строка от клиента, без проверки)
	OriginalSize string `json:"originalSize"`
	// CompressedSize — размер после обработки медиа-сервисом, в байтах
	CompressedSize string `json:"compressedSize"`
	// Duration — длительность в секундах (0, если неизвестна)
	Duration float64 `json:"duration"`
	// CreatedAt — время вставки, ключ сортировки списков
	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt — совпадает с CreatedAt
	UpdatedAt time.Time `json:"updatedAt"`
}

// CompressionPercent возвращает экономию размера в процентах:
// round((1 - compressed/original) * 100). 0, если размеры не разбираются.
func (v *VideoRecord) CompressionPercent() int {
	original, err := strconv.ParseFloat(v.OriginalSize, 64)
	if err != nil || original <= 0 {
		return 0
	}
	compressed, err := strconv.ParseFloat(v.CompressedSize, 64)
	if err != nil || compressed < 0 {
		return 0
	}
	return int(math.Round((1 - compressed/original) * 100))
}
