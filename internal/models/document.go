package models

import (
	"sort"
	"strings"
)

// Source is one entry of the configured document set.
type Source struct {
	Key  string
	Path string
}

// IsRemote reports whether the source must be downloaded before loading.
func (s Source) IsRemote() bool {
	return IsRemote(s.Path)
}

// DocumentSet maps a human readable key to a file path or URL.
type DocumentSet map[string]string

// Sources returns the entries ordered by key so ingestion is deterministic.
func (s DocumentSet) Sources() []Source {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sources := make([]Source, 0, len(keys))
	for _, k := range keys {
		sources = append(sources, Source{Key: k, Path: s[k]})
	}
	return sources
}

func IsRemote(path string) bool {
	p := strings.ToLower(path)
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}

// Metadata keys set on every loaded record.
const (
	MetaSource     = "source"
	MetaDocument   = "document"
	MetaPage       = "page"
	MetaTotalPages = "total_pages"
	MetaChunk      = "chunk"
	MetaID         = "id"
)
