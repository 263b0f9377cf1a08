package aggregate

import (
	"github.com/bouwbuddy/bouwbuddy/internal/composer"
	"github.com/bouwbuddy/bouwbuddy/internal/fieldreport"
)

const (
	// MaxCaptionRunes is the longest caption a media item may carry.
	MaxCaptionRunes = 1024
	// MaxBatchSize is the most items one media send may hold.
	MaxBatchSize = 10
)

// MediaItem is one photo with its caption.
type MediaItem struct {
	Ref     string `json:"ref"`
	Caption string `json:"caption"`
}

// Media is the photo evidence for a report, in record order.
type Media struct {
	Items []MediaItem `json:"items"`
}

// Empty reports whether no record in the window carried a photo.
func (m Media) Empty() bool { return len(m.Items) == 0 }

// Chunks splits the items into sends of at most MaxBatchSize.
func (m Media) Chunks() [][]MediaItem { return Chunks(m.Items, MaxBatchSize) }

// BuildMedia collects one item per record that has a photo reference.
func BuildMedia(recs []fieldreport.Record) Media {
	var m Media
	for _, r := range recs {
		if r.PhotoRef == "" {
			continue
		}
		m.Items = append(m.Items, MediaItem{Ref: r.PhotoRef, Caption: Caption(r)})
	}
	return m
}

// Caption renders "{name} ({company}) - {task}" cut to MaxCaptionRunes.
func Caption(r fieldreport.Record) string {
	return composer.TruncateRunes(r.Name+" ("+r.Company+") - "+r.TaskDescription, MaxCaptionRunes)
}

// Chunks splits items into consecutive slices of at most size elements.
// Concatenating the result reproduces items.
func Chunks[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = 1
	}
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end:end])
	}
	return out
}
