package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaydocs/pagesync/internal/blocktree"
	"github.com/relaydocs/pagesync/internal/jobs"
	"github.com/relaydocs/pagesync/internal/validator"
	"github.com/relaydocs/pagesync/internal/workspace"
)

type fakeServer struct {
	mu        sync.Mutex
	remaining []string // ids still attached to the page being purged
	deletes   []string
	appends   [][]int // recorded append batch sizes
	updates   int32
	nextID    int64
}

func newFakeServer(preExisting []string) *fakeServer {
	return &fakeServer{remaining: preExisting}
}

func (f *fakeServer) newID() string {
	id := atomic.AddInt64(&f.nextID, 1)
	return fmt.Sprintf("blk-%d", id)
}

func (f *fakeServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && contains(r.URL.Path, "/children"):
			f.mu.Lock()
			ids := append([]string(nil), f.remaining...)
			f.mu.Unlock()
			results := make([]map[string]any, 0, len(ids))
			for _, id := range ids {
				results = append(results, map[string]any{"id": id, "type": "paragraph", "has_children": false,
					"paragraph": map[string]any{"rich_text": []any{}}})
			}
			writeJSON(w, map[string]any{"results": results, "has_more": false})

		case r.Method == http.MethodDelete:
			f.mu.Lock()
			f.deletes = append(f.deletes, r.URL.Path)
			kept := f.remaining[:0]
			for _, id := range f.remaining {
				if !contains(r.URL.Path, id) {
					kept = append(kept, id)
				}
			}
			f.remaining = kept
			f.mu.Unlock()
			writeJSON(w, map[string]any{"archived": true})

		case r.Method == http.MethodPatch && contains(r.URL.Path, "/children"):
			var body struct {
				Children []json.RawMessage `json:"children"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			f.mu.Lock()
			f.appends = append(f.appends, []int{len(body.Children)})
			f.mu.Unlock()
			results := make([]map[string]any, 0, len(body.Children))
			for range body.Children {
				results = append(results, map[string]any{"id": f.newID()})
			}
			writeJSON(w, map[string]any{"results": results})

		case r.Method == http.MethodPatch:
			atomic.AddInt32(&f.updates, 1)
			writeJSON(w, map[string]any{"ok": true})

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func testOrchestrator(t *testing.T, srv *httptest.Server) *Orchestrator {
	t.Helper()
	cfg := workspace.DefaultClientConfig("test-token")
	cfg.BaseURL = srv.URL
	cfg.ReqPerSec = 1000
	cfg.AttemptTimeout = 2 * time.Second
	cfg.OperationTimeout = 2 * time.Second
	client := workspace.New(cfg)
	registry := jobs.NewRegistry(time.Minute)
	return New(client, registry, nil, DefaultOptions())
}

func paragraphBlocks(n int) []*workspace.Block {
	blocks := make([]*workspace.Block, 0, n)
	for i := 0; i < n; i++ {
		blocks = append(blocks, &workspace.Block{
			Kind:     workspace.KindParagraph,
			RichText: []workspace.RichRun{{Text: "item " + strconv.Itoa(i)}},
		})
	}
	return blocks
}

func TestReplaceContent_ChunksOversizedListInto100BlockBatches(t *testing.T) {
	fs := newFakeServer(nil)
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	o := testOrchestrator(t, srv)
	blocks := paragraphBlocks(250)

	res, err := o.ReplaceContent(context.Background(), ReplaceContentInput{
		RequestID: "req-s4", TargetPageID: "page-1", Blocks: blocks,
		Deadline: time.Now().Add(10 * time.Second),
	})
	require.NoError(t, err)
	assert.Equal(t, 250, res.AppendedCount)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	require.Len(t, fs.appends, 3)
	assert.Equal(t, 100, fs.appends[0][0])
	assert.Equal(t, 100, fs.appends[1][0])
	assert.Equal(t, 50, fs.appends[2][0])
}

func TestReplaceContent_SmallSubtreeUploadsInlineNotTwice(t *testing.T) {
	fs := newFakeServer(nil)
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	o := testOrchestrator(t, srv)
	callout := &workspace.Block{
		Kind:     workspace.KindCallout,
		RichText: []workspace.RichRun{{Text: "note"}},
		Children: paragraphBlocks(3),
	}

	res, err := o.ReplaceContent(context.Background(), ReplaceContentInput{
		RequestID: "req-inline", TargetPageID: "page-1", Blocks: []*workspace.Block{callout},
		Deadline: time.Now().Add(10 * time.Second),
	})
	require.NoError(t, err)
	assert.Equal(t, 4, res.AppendedCount, "the callout plus its 3 inline children")

	fs.mu.Lock()
	defer fs.mu.Unlock()
	require.Len(t, fs.appends, 1, "a subtree within maxChunkSize must ride along in a single appendChildren call")
	assert.Equal(t, 1, fs.appends[0][0])
}

func TestReplaceContent_OversizedSubtreeChunksSeparately(t *testing.T) {
	fs := newFakeServer(nil)
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	o := testOrchestrator(t, srv)
	toggle := &workspace.Block{
		Kind:     workspace.KindToggle,
		RichText: []workspace.RichRun{{Text: "expand"}},
		Children: paragraphBlocks(150),
	}

	res, err := o.ReplaceContent(context.Background(), ReplaceContentInput{
		RequestID: "req-overflow", TargetPageID: "page-1", Blocks: []*workspace.Block{toggle},
		Deadline: time.Now().Add(10 * time.Second),
	})
	require.NoError(t, err)
	assert.Equal(t, 151, res.AppendedCount, "the toggle plus its 150 children, none uploaded twice")

	fs.mu.Lock()
	defer fs.mu.Unlock()
	require.Len(t, fs.appends, 3, "one call for the toggle itself, two chunked calls for its 150 children")
	assert.Equal(t, 1, fs.appends[0][0])
	assert.Equal(t, 100, fs.appends[1][0])
	assert.Equal(t, 50, fs.appends[2][0])
}

func TestReplaceContent_PreservesOrderOfAssignedIDs(t *testing.T) {
	fs := newFakeServer(nil)
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	o := testOrchestrator(t, srv)
	blocks := paragraphBlocks(5)

	_, err := o.ReplaceContent(context.Background(), ReplaceContentInput{
		RequestID: "req-order", TargetPageID: "page-1", Blocks: blocks,
		Deadline: time.Now().Add(10 * time.Second),
	})
	require.NoError(t, err)

	for i, blk := range blocks {
		assert.NotEmpty(t, blk.ID, "block %d should have an assigned id", i)
		if i > 0 {
			assert.NotEqual(t, blocks[i-1].ID, blk.ID)
		}
	}
}

func TestReplaceContent_PurgesExistingChildrenFirst(t *testing.T) {
	fs := newFakeServer([]string{"old-1", "old-2", "old-3"})
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	o := testOrchestrator(t, srv)
	_, err := o.ReplaceContent(context.Background(), ReplaceContentInput{
		RequestID: "req-purge", TargetPageID: "page-1", Blocks: paragraphBlocks(1),
		Deadline: time.Now().Add(10 * time.Second),
	})
	require.NoError(t, err)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	assert.Len(t, fs.deletes, 3)
}

func TestReplaceContent_SweepsMarkerRunsAfterUpload(t *testing.T) {
	fs := newFakeServer(nil)
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	o := testOrchestrator(t, srv)
	blocks := []*workspace.Block{
		{Kind: workspace.KindParagraph, RichText: []workspace.RichRun{
			{Text: "hello"}, {Text: "(src:abc12345)"},
		}},
	}

	_, err := o.ReplaceContent(context.Background(), ReplaceContentInput{
		RequestID: "req-sweep", TargetPageID: "page-1", Blocks: blocks,
		Deadline: time.Now().Add(10 * time.Second),
	})
	require.NoError(t, err)

	assert.False(t, hasMarker(blocks[0]))
	assert.Equal(t, int32(1), atomic.LoadInt32(&fs.updates))
}

func TestReplaceContent_DeadlineHonored(t *testing.T) {
	fs := newFakeServer(nil)
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	o := testOrchestrator(t, srv)
	blocks := paragraphBlocks(1)

	_, err := o.ReplaceContent(context.Background(), ReplaceContentInput{
		RequestID: "req-deadline", TargetPageID: "page-1", Blocks: blocks,
		Deadline: time.Now().Add(-time.Second), // already expired
	})
	require.Error(t, err)
}

func TestReplaceContent_CancelledJobStopsUpload(t *testing.T) {
	fs := newFakeServer(nil)
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	cfg := workspace.DefaultClientConfig("test-token")
	cfg.BaseURL = srv.URL
	cfg.ReqPerSec = 1000
	client := workspace.New(cfg)
	registry := jobs.NewRegistry(time.Minute)
	o := New(client, registry, nil, DefaultOptions())

	job := registry.Create("req-cancel", "page-1", time.Now().Add(10*time.Second))
	registry.Cancel("req-cancel")
	assert.True(t, job.Cancelled())

	err := checkSuspension(context.Background(), job)
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestReplaceContent_ValidatesAndPersistsRecordWhenSourceHTMLGiven(t *testing.T) {
	fs := newFakeServer(nil)
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	cfg := workspace.DefaultClientConfig("test-token")
	cfg.BaseURL = srv.URL
	cfg.ReqPerSec = 1000
	client := workspace.New(cfg)
	registry := jobs.NewRegistry(time.Minute)
	store, err := jobs.OpenStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	o := New(client, registry, store, DefaultOptions())

	src := []byte(`<h1>Hello</h1><p>World.</p>`)
	built, err := blocktree.Build(context.Background(), src, blocktree.DefaultOptions())
	require.NoError(t, err)

	res, err := o.ReplaceContent(context.Background(), ReplaceContentInput{
		RequestID: "req-validate", TargetPageID: "page-1",
		Blocks: built.Blocks, SourceHTML: src, ValidatorOpts: validator.DefaultOptions(),
		Deadline: time.Now().Add(10 * time.Second),
	})
	require.NoError(t, err)
	require.NotNil(t, res.Report)
	assert.GreaterOrEqual(t, res.Report.Coverage, 0.99)

	rec, err := store.Get(context.Background(), "req-validate")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, jobs.PhaseDone, rec.Phase)
}

// rateLimitedServer answers the first two append calls with 429 and a
// one-second Retry-After, then succeeds, mirroring a transient workspace
// rate limit.
type rateLimitedServer struct {
	mu          sync.Mutex
	appendCalls int
}

func (f *rateLimitedServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && contains(r.URL.Path, "/children"):
			writeJSON(w, map[string]any{"results": []any{}, "has_more": false})

		case r.Method == http.MethodPatch && contains(r.URL.Path, "/children"):
			f.mu.Lock()
			f.appendCalls++
			n := f.appendCalls
			f.mu.Unlock()

			if n <= 2 {
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"message":"rate limited"}`))
				return
			}

			var body struct {
				Children []json.RawMessage `json:"children"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			results := make([]map[string]any, 0, len(body.Children))
			for range body.Children {
				results = append(results, map[string]any{"id": fmt.Sprintf("blk-%d", n)})
			}
			writeJSON(w, map[string]any{"results": results})

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func TestReplaceContent_TransientRateLimit_RetriesThenSucceeds(t *testing.T) {
	fs := &rateLimitedServer{}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	cfg := workspace.DefaultClientConfig("test-token")
	cfg.BaseURL = srv.URL
	cfg.ReqPerSec = 1000
	cfg.AttemptTimeout = 5 * time.Second
	cfg.OperationTimeout = 10 * time.Second
	client := workspace.New(cfg)
	registry := jobs.NewRegistry(time.Minute)
	o := New(client, registry, nil, DefaultOptions())

	start := time.Now()
	res, err := o.ReplaceContent(context.Background(), ReplaceContentInput{
		RequestID: "req-s5", TargetPageID: "page-1", Blocks: paragraphBlocks(1),
		Deadline: time.Now().Add(20 * time.Second),
	})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, 1, res.AppendedCount)
	assert.GreaterOrEqual(t, elapsed, 2*time.Second,
		"two 1s retry-after backoffs should make the call take at least 2s")

	for _, w := range res.Warnings {
		assert.NotContains(t, w, "rate_limited", "rate_limited must not surface as a warning")
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	assert.Equal(t, 3, fs.appendCalls, "expected two failed attempts then one success")
}

func TestStripMarkerRuns_RemovesOnlyMarkerRuns(t *testing.T) {
	runs := []workspace.RichRun{
		{Text: "hello"},
		{Text: "(src:deadbeef1)"},
		{Text: "world"},
	}
	out := stripMarkerRuns(runs)
	require.Len(t, out, 2)
	assert.Equal(t, "hello", out[0].Text)
	assert.Equal(t, "world", out[1].Text)
}
