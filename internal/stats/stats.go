// Package stats reports exact counts for the content store and the vector
// index.
package stats

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/vaultvec/internal/contentstore"
	"github.com/starford/vaultvec/internal/models"
	"github.com/starford/vaultvec/internal/vectorstore"
)

// MaxSamples caps SampleFiles.
const MaxSamples = 5

// Sample is one listed record.
type Sample struct {
	Key  string `json:"key"`
	Size string `json:"size"`
}

// Stats is the aggregate over every stored note.
type Stats struct {
	Count          int      `json:"count"`
	TotalSizeBytes int64    `json:"totalSizeBytes"`
	TotalSize      string   `json:"totalSize"`
	SampleFiles    []Sample `json:"sampleFiles"`
	VectorCount    int      `json:"vectorCount"`
	// VectorCountEstimated is set when the vector store could not count
	// and VectorCount mirrors Count.
	VectorCountEstimated bool `json:"vectorCountEstimated,omitempty"`
	Dimensions           int  `json:"dimensions"`
	// Consistent reports whether both stores hold the same number of notes.
	Consistent bool `json:"consistent"`
}

func (s *Stats) Message() string {
	msg := fmt.Sprintf("%d notes stored (%s), %d vectors of %d dimensions",
		s.Count, s.TotalSize, s.VectorCount, s.Dimensions)
	if !s.Consistent {
		msg += "; vector and content stores disagree, run a sync and cleanup"
	}
	return msg
}

// Aggregator computes Stats.
type Aggregator struct {
	content    contentstore.Store
	vectors    vectorstore.Store
	dimensions int
	logger     *slog.Logger
}

func New(content contentstore.Store, vectors vectorstore.Store, dimensions int, logger *slog.Logger) *Aggregator {
	return &Aggregator{content: content, vectors: vectors, dimensions: dimensions, logger: logger}
}

// Stats pages through the entire content listing for exact totals and keeps
// the first MaxSamples entries as samples.
func (a *Aggregator) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{SampleFiles: []Sample{}, Dimensions: a.dimensions}
	err := contentstore.Walk(ctx, a.content, models.ContentKeyPrefix, func(o models.ObjectInfo) error {
		st.Count++
		st.TotalSizeBytes += o.Size
		if len(st.SampleFiles) < MaxSamples {
			st.SampleFiles = append(st.SampleFiles, Sample{Key: o.Key, Size: FormatSize(o.Size)})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("stats: list content: %w", err)
	}
	st.TotalSize = FormatSize(st.TotalSizeBytes)

	n, err := a.vectors.Count(ctx)
	if err != nil {
		a.logger.Warn("stats: vector count unavailable", slog.String("error", err.Error()))
		n = st.Count
		st.VectorCountEstimated = true
	}
	st.VectorCount = n
	st.Consistent = st.VectorCount == st.Count
	return st, nil
}

// FormatSize renders n bytes as B, KB or MB with two decimals.
func FormatSize(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.2f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.2f MB", float64(n)/1024/1024)
	}
}
