package storage

import (
	"path"
	"strings"

	"github.com/google/uuid"
)

// MediaKey формирует ключ нового объекта вида "media/<uuid>.<ext>".
// Расширение выводится из contentType, неизвестный тип — без расширения.
func MediaKey(contentType string) string {
	var ext string
	switch contentType {
	case "image/jpeg":
		ext = ".jpg"
	case "image/png":
		ext = ".png"
	case "image/webp":
		ext = ".webp"
	case "image/gif":
		ext = ".gif"
	}

	return path.Join("media", uuid.NewString()+ext)
}

// MediaURL возвращает адрес объекта: publicBase/key, если база задана,
// иначе path-style адрес endpoint/bucket/key.
func MediaURL(publicBase, endpoint, bucket, key string) string {
	if publicBase != "" {
		return strings.TrimRight(publicBase, "/") + "/" + key
	}

	return strings.TrimRight(endpoint, "/") + "/" + bucket + "/" + key
}
