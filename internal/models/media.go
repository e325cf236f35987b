package models

import "io"

// MediaAsset — ссылка на объект во внешнем хранилище медиа.
// PublicID — ключ объекта, по которому его можно удалить.
type MediaAsset struct {
	URL      string
	PublicID string
}

// IsZero сообщает, что ссылка пустая (объект не загружался).
func (a MediaAsset) IsZero() bool {
	return a.PublicID == "" && a.URL == ""
}

// MediaFile — загружаемый файл: содержимое и его атрибуты из multipart-формы.
type MediaFile struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}
