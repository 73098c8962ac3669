package model

// MediaKind — тип загружаемого ассета.
type MediaKind string

const (
	// MediaKindImage — изображение.
	MediaKindImage MediaKind = "image"
	// MediaKindVideo — видео.
	MediaKindVideo MediaKind = "video"
)

// UploadResult — ответ медиа-сервиса на загрузку. Не сохраняется отдельно.
type UploadResult struct {
	// PublicID — идентификатор сохранённого ассета
	PublicID string
	// Bytes — размер сохранённого ассета
	Bytes int64
	// Duration — длительность в секундах (только видео, 0 если не сообщается)
	Duration float64
	// Format — итоговый формат (mp4, jpg, ...), если известен
	Format string
	// Kind — тип ассета
	Kind MediaKind
}
