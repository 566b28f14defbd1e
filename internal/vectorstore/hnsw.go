package vectorstore

import (
	"bufio"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/coder/hnsw"

	"github.com/starford/vaultvec/internal/apperr"
	"github.com/starford/vaultvec/internal/models"
)

func init() {
	// Extra front-matter values are string or []string.
	gob.Register([]string{})
}

// HNSWConfig tunes the graph. Zero values pick defaults.
type HNSWConfig struct {
	Dimensions int
	// Path is the snapshot file; empty keeps the graph in memory only.
	Path     string
	M        int
	EfSearch int
}

// HNSW is an approximate nearest-neighbour store on coder/hnsw. Replaced
// and deleted entries are dropped from the id maps but left in the graph
// (lazy deletion); queries over-fetch to compensate and Save compacts.
type HNSW struct {
	mu      sync.RWMutex
	cfg     HNSWConfig
	graph   *hnsw.Graph[uint64]
	idMap   map[string]uint64
	keyMap  map[uint64]string
	meta    map[string]models.EntryMetadata
	nextKey uint64
	dirty   bool
	logger  *slog.Logger
}

type hnswSnapshot struct {
	Dimensions int
	IDMap      map[string]uint64
	Meta       map[string]models.EntryMetadata
	NextKey    uint64
}

// NewHNSW creates a store and loads the snapshot at cfg.Path when present.
func NewHNSW(cfg HNSWConfig, logger *slog.Logger) (*HNSW, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("vectorstore: hnsw dimensions: %w", apperr.ErrConfigurationMissing)
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 64
	}
	s := &HNSW{cfg: cfg, logger: logger}
	s.reset()

	if cfg.Path != "" {
		if err := s.load(cfg.Path); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *HNSW) newGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = s.cfg.M
	g.EfSearch = s.cfg.EfSearch
	g.Ml = 0.25
	return g
}

func (s *HNSW) reset() {
	s.graph = s.newGraph()
	s.idMap = make(map[string]uint64)
	s.keyMap = make(map[uint64]string)
	s.meta = make(map[string]models.EntryMetadata)
	s.nextKey = 0
}

// Upsert adds entries, orphaning the previous node of a replaced id.
func (s *HNSW) Upsert(_ context.Context, entries []models.IndexEntry) error {
	for _, e := range entries {
		if len(e.Vector) != s.cfg.Dimensions {
			return dimensionError(s.cfg.Dimensions, len(e.Vector))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if old, ok := s.idMap[e.ID]; ok {
			delete(s.keyMap, old)
		}
		key := s.nextKey
		s.nextKey++
		s.graph.Add(hnsw.MakeNode(key, normalize(e.Vector)))
		s.idMap[e.ID] = key
		s.keyMap[key] = e.ID
		s.meta[e.ID] = e.Metadata
	}
	s.dirty = true
	return nil
}

// Query searches the graph. Scores are cosine similarity (1 - distance).
func (s *HNSW) Query(_ context.Context, vector []float32, topK int) ([]models.Match, error) {
	if len(vector) != s.cfg.Dimensions {
		return nil, dimensionError(s.cfg.Dimensions, len(vector))
	}
	if topK <= 0 {
		return []models.Match{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.graph.Len() == 0 || len(s.idMap) == 0 {
		return []models.Match{}, nil
	}

	q := normalize(vector)
	orphans := s.graph.Len() - len(s.idMap)
	nodes := s.graph.Search(q, min(topK+orphans, s.graph.Len()))

	out := make([]models.Match, 0, topK)
	for _, n := range nodes {
		id, ok := s.keyMap[n.Key]
		if !ok {
			continue
		}
		out = append(out, models.Match{
			ID:       id,
			Score:    1 - float64(s.graph.Distance(q, n.Value)),
			Metadata: s.meta[id],
		})
		if len(out) == topK {
			break
		}
	}
	return out, nil
}

// DeleteByIDs drops ids from the maps.
func (s *HNSW) DeleteByIDs(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		key, ok := s.idMap[id]
		if !ok {
			continue
		}
		delete(s.idMap, id)
		delete(s.keyMap, key)
		delete(s.meta, id)
		s.dirty = true
	}
	return nil
}

// Count returns the number of live ids.
func (s *HNSW) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.idMap), nil
}

// Save compacts the graph and writes it with its id maps to cfg.Path.
func (s *HNSW) Save() error {
	if s.cfg.Path == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}

	s.compact()

	if len(s.idMap) == 0 {
		for _, p := range []string{s.cfg.Path, s.cfg.Path + ".meta"} {
			if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return apperr.StoreIO("vectorstore: remove snapshot", err)
			}
		}
		s.dirty = false
		return nil
	}

	if err := writeFileAtomic(s.cfg.Path, s.graph.Export); err != nil {
		return apperr.StoreIO("vectorstore: save graph", err)
	}
	snap := hnswSnapshot{
		Dimensions: s.cfg.Dimensions,
		IDMap:      s.idMap,
		Meta:       s.meta,
		NextKey:    s.nextKey,
	}
	if err := writeFileAtomic(s.cfg.Path+".meta", func(w io.Writer) error {
		return gob.NewEncoder(w).Encode(snap)
	}); err != nil {
		return apperr.StoreIO("vectorstore: save metadata", err)
	}
	s.dirty = false
	s.logger.Debug("vectorstore: hnsw saved", slog.String("path", s.cfg.Path), slog.Int("entries", len(s.idMap)))
	return nil
}

// compact rebuilds the graph without orphaned nodes.
func (s *HNSW) compact() {
	if s.graph.Len() == len(s.idMap) {
		return
	}
	g := s.newGraph()
	for id, key := range s.idMap {
		vec, ok := s.graph.Lookup(key)
		if !ok {
			delete(s.idMap, id)
			delete(s.keyMap, key)
			delete(s.meta, id)
			continue
		}
		g.Add(hnsw.MakeNode(key, vec))
	}
	s.graph = g
}

func (s *HNSW) load(path string) error {
	metaFile, err := os.Open(path + ".meta")
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return apperr.StoreIO("vectorstore: open metadata", err)
	}
	defer metaFile.Close()

	var snap hnswSnapshot
	if err := gob.NewDecoder(metaFile).Decode(&snap); err != nil {
		return apperr.StoreIO("vectorstore: decode metadata", err)
	}
	if snap.Dimensions != s.cfg.Dimensions {
		return fmt.Errorf("vectorstore: snapshot %s: %w", path, dimensionError(s.cfg.Dimensions, snap.Dimensions))
	}

	graphFile, err := os.Open(path)
	if err != nil {
		return apperr.StoreIO("vectorstore: open graph", err)
	}
	defer graphFile.Close()

	g := s.newGraph()
	if err := g.Import(bufio.NewReader(graphFile)); err != nil {
		return apperr.StoreIO("vectorstore: import graph", err)
	}

	s.graph = g
	s.idMap = snap.IDMap
	s.meta = snap.Meta
	s.nextKey = snap.NextKey
	s.keyMap = make(map[uint64]string, len(s.idMap))
	for id, key := range s.idMap {
		s.keyMap[key] = id
	}
	if s.meta == nil {
		s.meta = make(map[string]models.EntryMetadata)
	}
	s.logger.Info("vectorstore: hnsw loaded", slog.String("path", path), slog.Int("entries", len(s.idMap)))
	return nil
}

// Close saves the snapshot.
func (s *HNSW) Close() error {
	return s.Save()
}
