package models

import "strings"

// ContentKeyPrefix namespaces document records in the content store.
const ContentKeyPrefix = "notes/"

// ContentKey returns the content-store key for a sanitized path.
func ContentKey(path string) string {
	return ContentKeyPrefix + path
}

// PathFromKey strips ContentKeyPrefix from key.
func PathFromKey(key string) string {
	return strings.TrimPrefix(key, ContentKeyPrefix)
}

// ContentRecord is a full-fidelity stored value.
type ContentRecord struct {
	Key      string
	Value    []byte
	Checksum string
	Size     int64
}

// ObjectInfo is the result of a header-only read.
type ObjectInfo struct {
	Key      string
	Checksum string
	Size     int64
}

// ListPage is one page of a content-store listing. NextPageToken is empty
// on the last page.
type ListPage struct {
	Items         []ObjectInfo
	NextPageToken string
}
