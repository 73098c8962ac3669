// Пакет delivery — построение URL доставки ассетов медиа-сервиса
// и пресеты форматов для социальных сетей.
//
// Формат URL: {base}/{cloud}/{image|video}/upload/{трансформации}/{publicId}
package delivery

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// VideoPreviewEffect — эффект короткого превью видео.
const VideoPreviewEffect = "e_preview:duration_15:max_seg_9:min_seg_dur_1"

// SocialFormat — пресет кадрирования под социальную сеть.
type SocialFormat struct {
	Name        string `json:"name"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	AspectRatio string `json:"aspectRatio"`
}

// socialFormats — порядок определяет порядок выдачи в API.
var socialFormats = []SocialFormat{
	{Name: "Instagram Square (1:1)", Width: 1080, Height: 1080, AspectRatio: "1:1"},
	{Name: "Instagram Portrait (4:5)", Width: 1080, Height: 1350, AspectRatio: "4:5"},
	{Name: "Twitter Post (16:9)", Width: 1200, Height: 675, AspectRatio: "16:9"},
	{Name: "Twitter Header (3:1)", Width: 1500, Height: 500, AspectRatio: "3:1"},
	{Name: "Facebook Cover (205:78)", Width: 820, Height: 312, AspectRatio: "205:78"},
}

// SocialFormats возвращает копию списка пресетов.
func SocialFormats() []SocialFormat {
	out := make([]SocialFormat, len(socialFormats))
	copy(out, socialFormats)
	return out
}

// LookupFormat ищет пресет по точному имени.
func LookupFormat(name string) (SocialFormat, bool) {
	for _, f := range socialFormats {
		if f.Name == name {
			return f, true
		}
	}
	return SocialFormat{}, false
}

var whitespace = regexp.MustCompile(`\s+`)

// DownloadName — имя файла для скачивания: формат в нижнем регистре,
// пробельные последовательности заменены на "_", расширение .png.
func DownloadName(format string) string {
	return whitespace.ReplaceAllString(strings.ToLower(format), "_") + ".png"
}

// ImageTransform — результат трансформации изображения под пресет.
type ImageTransform struct {
	URL          string `json:"url"`
	Format       string `json:"format"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AspectRatio  string `json:"aspectRatio"`
	DownloadName string `json:"downloadName"`
}

// VideoURLs — URL доставки видео для карточки.
type VideoURLs struct {
	Thumbnail string `json:"thumbnail"`
	Full      string `json:"full"`
	Preview   string `json:"preview"`
}

// Builder строит URL доставки для одного облака.
type Builder struct {
	baseURL string
	cloud   string
}

// NewBuilder создаёт построитель URL. baseURL — например https://res.cloudinary.com.
func NewBuilder(baseURL, cloud string) *Builder {
	return &Builder{baseURL: strings.TrimRight(baseURL, "/"), cloud: cloud}
}

// ImageTransform строит URL изображения, кадрированного под пресет.
func (b *Builder) ImageTransform(publicID string, f SocialFormat) ImageTransform {
	t := "c_fill,g_auto,w_" + strconv.Itoa(f.Width) + ",h_" + strconv.Itoa(f.Height) + ",ar_" + f.AspectRatio
	return ImageTransform{
		URL:          b.build("image", publicID, t),
		Format:       f.Name,
		Width:        f.Width,
		Height:       f.Height,
		AspectRatio:  f.AspectRatio,
		DownloadName: DownloadName(f.Name),
	}
}

// VideoURLs строит URL миниатюры, полного видео и превью.
func (b *Builder) VideoURLs(publicID string) VideoURLs {
	return VideoURLs{
		Thumbnail: b.build("video", publicID, "c_fill,g_auto,w_400,h_225", "f_jpg", "q_auto") + ".jpg",
		Full:      b.build("video", publicID, "c_limit,w_1920,h_1080", "f_auto", "q_auto"),
		Preview:   b.build("video", publicID, "c_limit,w_400,h_225", VideoPreviewEffect, "f_auto", "q_auto"),
	}
}

// build собирает URL; сегменты publicId экранируются по отдельности,
// "/" между папками сохраняется.
func (b *Builder) build(resource, publicID string, transformations ...string) string {
	segments := strings.Split(publicID, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}

	parts := []string{b.baseURL, url.PathEscape(b.cloud), resource, "upload"}
	parts = append(parts, transformations...)
	parts = append(parts, strings.Join(segments, "/"))
	return strings.Join(parts, "/")
}
