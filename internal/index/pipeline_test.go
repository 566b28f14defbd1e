package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/starford/vaultvec/internal/apperr"
	"github.com/starford/vaultvec/internal/checksum"
	"github.com/starford/vaultvec/internal/contentstore"
	"github.com/starford/vaultvec/internal/models"
	"github.com/starford/vaultvec/internal/storage"
	"github.com/starford/vaultvec/internal/testutil"
	"github.com/starford/vaultvec/internal/vectorstore"
)

const testDims = 16

type pipelineEnv struct {
	vault    string
	source   *storage.FS
	embedder *testutil.Embedder
	vectors  *vectorstore.Memory
	content  *contentstore.Memory
	pipeline *Pipeline
}

func newPipelineEnv(t *testing.T, batchSize int) *pipelineEnv {
	t.Helper()
	vault, source := testutil.TestVault(t)
	env := &pipelineEnv{
		vault:    vault,
		source:   source,
		embedder: testutil.NewEmbedder(testDims),
		vectors:  vectorstore.NewMemory(testDims),
		content:  contentstore.NewMemory(0),
	}
	env.pipeline = NewPipeline(env.embedder, env.vectors, env.content, source,
		Config{BatchSize: batchSize}, testutil.Logger())
	return env
}

func docs(n int) []models.Document {
	out := make([]models.Document, n)
	for i := range out {
		out[i] = models.Document{
			Path:  fmt.Sprintf("note-%02d.md", i),
			Title: fmt.Sprintf("Note %d", i),
			Body:  fmt.Sprintf("body of note %d", i),
			Tags:  []string{"t"},
		}
	}
	return out
}

func TestSyncAll_RoundTrip(t *testing.T) {
	env := newPipelineEnv(t, 10)
	long := strings.Repeat("word ", 400)
	testutil.WriteNote(t, env.vault, "projects/alpha.md", "---\ntitle: Alpha\ntags: [work, go]\nstatus: draft\n---\nAlpha body #inline\n"+long)
	testutil.WriteNote(t, env.vault, "beta.md", "Just beta")
	testutil.WriteNote(t, env.vault, ".obsidian/hidden.md", "skip me")

	res, err := env.pipeline.SyncAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 2 || res.Indexed != 2 || res.Updated != 2 || res.Failed != 0 {
		t.Fatalf("result = %+v", res)
	}

	rec, err := env.content.Get(context.Background(), models.ContentKey("projects/alpha.md"))
	if err != nil {
		t.Fatal(err)
	}
	var doc models.Document
	if err := json.Unmarshal(rec.Value, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Title != "Alpha" {
		t.Errorf("title = %q", doc.Title)
	}
	if strings.Join(doc.Tags, ",") != "work,go,inline" {
		t.Errorf("tags = %v", doc.Tags)
	}
	if !strings.HasSuffix(doc.Body, long) {
		t.Error("content store must keep the full body")
	}
	if doc.ModifiedAt == "" || doc.CreatedAt == "" {
		t.Error("timestamps missing")
	}

	entry, ok := env.vectors.Get(checksum.PathID("projects/alpha.md"))
	if !ok {
		t.Fatal("vector entry missing")
	}
	if n := len([]rune(entry.Metadata.Content)); n != models.PreviewLength {
		t.Errorf("preview length = %d", n)
	}
	if entry.Metadata.Extra["status"] != "draft" {
		t.Errorf("extra = %v", entry.Metadata.Extra)
	}
}

func TestSyncAll_FilenamesRewrittenBySanitizer(t *testing.T) {
	env := newPipelineEnv(t, 10)
	testutil.WriteNote(t, env.vault, "Wait....md", "ellipsis note")
	testutil.WriteNote(t, env.vault, "a..b.md", "double dot note")
	testutil.WriteNote(t, env.vault, ".dotfile.md", "dot note")
	testutil.WriteNote(t, env.vault, "plain.md", "plain note")
	ctx := context.Background()

	res, err := env.pipeline.SyncAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 4 || res.Indexed != 4 || res.Failed != 0 {
		t.Fatalf("result = %+v", res)
	}

	for raw, stored := range map[string]string{
		"Wait....md":  "Waitmd",
		"a..b.md":     "ab.md",
		".dotfile.md": "dotfile.md",
	} {
		rec, err := env.content.Get(ctx, models.ContentKey(stored))
		if err != nil {
			t.Fatalf("%s: stored under %s: %v", raw, stored, err)
		}
		var doc models.Document
		if err := json.Unmarshal(rec.Value, &doc); err != nil {
			t.Fatal(err)
		}
		if doc.Path != stored {
			t.Errorf("%s: path = %q, want %q", raw, doc.Path, stored)
		}
		if want := strings.TrimSuffix(raw, ".md"); doc.Title != want {
			t.Errorf("%s: title = %q, want %q", raw, doc.Title, want)
		}
		if _, ok := env.vectors.Get(checksum.PathID(stored)); !ok {
			t.Errorf("%s: vector entry missing", raw)
		}
	}
}

func TestSync_DuplicateSanitizedPathsCountOnce(t *testing.T) {
	env := newPipelineEnv(t, 10)
	testutil.WriteNote(t, env.vault, "a.md", "note a")

	res, err := env.pipeline.SyncPaths(context.Background(), []string{"a.md", "/a.md", "a.md"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 1 || res.Indexed != 1 || res.Updated != 1 {
		t.Errorf("paths result = %+v", res)
	}

	in := docs(2)
	in[1].Path = "//" + in[0].Path
	in[1].Body = "newer body"
	res, err = env.pipeline.SyncDocuments(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 1 || res.Indexed != 1 {
		t.Errorf("documents result = %+v", res)
	}
	if n, _ := env.vectors.Count(context.Background()); n != 2 {
		t.Errorf("vector count = %d, want 2", n)
	}
	rec, err := env.content.Get(context.Background(), models.ContentKey(in[0].Path))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(rec.Value), "newer body") {
		t.Error("the last duplicate should win")
	}
}

func TestSync_SecondRunSkipsContentWrites(t *testing.T) {
	env := newPipelineEnv(t, 10)
	ctx := context.Background()

	first, err := env.pipeline.SyncDocuments(ctx, docs(3))
	if err != nil {
		t.Fatal(err)
	}
	if first.Updated != 3 {
		t.Fatalf("first = %+v", first)
	}

	second, err := env.pipeline.SyncDocuments(ctx, docs(3))
	if err != nil {
		t.Fatal(err)
	}
	if second.Updated != 0 || second.Skipped != 3 || second.Indexed != 3 {
		t.Errorf("second = %+v", second)
	}
	if env.content.Puts() != 3 {
		t.Errorf("content puts = %d, want 3", env.content.Puts())
	}
	if n := len(env.embedder.Batches()); n != 2 {
		t.Errorf("embed batches = %d, want 2 (upsert is unconditional)", n)
	}
}

func TestSync_OneEmbeddingRequestPerBatch(t *testing.T) {
	env := newPipelineEnv(t, 10)
	if _, err := env.pipeline.SyncDocuments(context.Background(), docs(25)); err != nil {
		t.Fatal(err)
	}
	batches := env.embedder.Batches()
	if len(batches) != 3 || len(batches[0]) != 10 || len(batches[2]) != 5 {
		t.Fatalf("batches = %d", len(batches))
	}
	if batches[0][0] != "Note 0\n\nbody of note 0" {
		t.Errorf("text = %q", batches[0][0])
	}
}

func TestSync_InvalidPathDoesNotBreakBatch(t *testing.T) {
	env := newPipelineEnv(t, 10)
	in := docs(10)
	in[4].Path = "bad|name.md"

	res, err := env.pipeline.SyncDocuments(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if res.Indexed != 9 || res.Failed != 1 || res.FailedPaths[0] != "bad|name.md" {
		t.Errorf("result = %+v", res)
	}
	if n, _ := env.vectors.Count(context.Background()); n != 9 {
		t.Errorf("vector count = %d", n)
	}
}

func TestSync_BatchFailureContinuesWithNextBatch(t *testing.T) {
	env := newPipelineEnv(t, 10)
	env.embedder.Fail = func(texts []string) error {
		if len(texts) == 10 {
			return apperr.Embedding("fake", errors.New("rejected"))
		}
		return nil
	}

	res, err := env.pipeline.SyncDocuments(context.Background(), docs(15))
	if err != nil {
		t.Fatal(err)
	}
	if res.Failed != 10 || res.Indexed != 5 {
		t.Errorf("result = %+v", res)
	}
	if rate := res.SuccessRate(); rate < 33 || rate > 34 {
		t.Errorf("success rate = %f", rate)
	}
}

func TestSync_DimensionMismatchAbortsRun(t *testing.T) {
	env := newPipelineEnv(t, 2)
	in := docs(6)
	env.embedder.Vectors[in[2].EmbeddingText()] = make([]float32, testDims+1)

	res, err := env.pipeline.SyncDocuments(context.Background(), in)
	if !errors.Is(err, apperr.ErrDimensionMismatch) {
		t.Fatalf("err = %v", err)
	}
	if res.Indexed != 2 {
		t.Errorf("committed batches must survive, indexed = %d", res.Indexed)
	}
	if n := len(env.embedder.Batches()); n != 2 {
		t.Errorf("run should stop after the bad batch, batches = %d", n)
	}
}

func TestSync_EmitsIndexedEvents(t *testing.T) {
	env := newPipelineEnv(t, 10)
	var got []string
	env.pipeline.OnEvent(func(kind, path string) { got = append(got, kind+":"+path) })

	if _, err := env.pipeline.SyncDocuments(context.Background(), docs(2)); err != nil {
		t.Fatal(err)
	}
	if strings.Join(got, ",") != "indexed:note-00.md,indexed:note-01.md" {
		t.Errorf("events = %v", got)
	}
}

func TestSync_CancelledContext(t *testing.T) {
	env := newPipelineEnv(t, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := env.pipeline.SyncDocuments(ctx, docs(3)); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}

func TestResult_SuccessRateEmptyRun(t *testing.T) {
	var r Result
	if r.SuccessRate() != 0 {
		t.Error("empty run must report 0")
	}
	r.fail("a.md")
	r.fail("a.md")
	if r.Failed != 1 {
		t.Errorf("failed = %d, a path counts once", r.Failed)
	}
}

func TestExtraMetadata_Limits(t *testing.T) {
	fm := map[string]any{
		"title":                "reserved",
		"status":               "ok",
		"long":                 strings.Repeat("x", MaxExtraValueLen+1),
		strings.Repeat("k", 65): "key too long",
		"aliases":              []string{"a", "b"},
		"many":                 make([]string, MaxExtraListLen+1),
		"nested":               map[string]any{"x": 1},
		"draft":                true,
	}
	got := extraMetadata(fm)
	if len(got) != 3 {
		t.Fatalf("extra = %v", got)
	}
	if got["status"] != "ok" || got["draft"] != true {
		t.Errorf("extra = %v", got)
	}
	if _, ok := got["title"]; ok {
		t.Error("reserved key leaked")
	}

	big := map[string]any{}
	for i := 0; i < 40; i++ {
		big[fmt.Sprintf("k%02d", i)] = "v"
	}
	if n := len(extraMetadata(big)); n != MaxExtraKeys {
		t.Errorf("keys = %d", n)
	}
}
