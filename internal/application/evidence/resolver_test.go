package evidence

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compligen-api/internal/config"
	"compligen-api/internal/domain/entity"
	"compligen-api/internal/infrastructure/collector"
	"compligen-api/internal/infrastructure/messaging"
	"compligen-api/internal/infrastructure/websearch"
	pkgerrors "compligen-api/pkg/errors"
)

type fakeIndex struct {
	chunks map[string][]*entity.EvidenceChunk
	err    error
	calls  int
}

func (f *fakeIndex) Search(ctx context.Context, scope, query string, topK int) ([]*entity.EvidenceChunk, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.chunks[scope], nil
}

type fakeDocs struct {
	docs map[entity.DocumentScope][]*entity.Document
}

func (f *fakeDocs) SearchKeyword(ctx context.Context, scope entity.DocumentScope, keyword string, limit int) ([]*entity.Document, error) {
	return f.docs[scope], nil
}

func (f *fakeDocs) UpsertBatch(ctx context.Context, docs []*entity.Document) (int, error) {
	return len(docs), nil
}

type fakeCollector struct {
	resp  *collector.CollectResponse
	calls int
}

func (f *fakeCollector) Enabled() bool { return f.resp != nil }

func (f *fakeCollector) Collect(ctx context.Context, req *collector.CollectRequest) (*collector.CollectResponse, error) {
	f.calls++
	return f.resp, nil
}

type fakeWeb struct {
	results []*websearch.Result
	content string
	calls   int
}

func (f *fakeWeb) Enabled() bool { return len(f.results) > 0 }

func (f *fakeWeb) Search(ctx context.Context, query string) ([]*websearch.Result, error) {
	f.calls++
	return f.results, nil
}

func (f *fakeWeb) FetchContent(ctx context.Context, pageURL string) string {
	return f.content
}

type fakePublisher struct {
	jobs []*messaging.CollectJobMessage
}

func (f *fakePublisher) PublishCollectJob(ctx context.Context, job *messaging.CollectJobMessage) (string, error) {
	f.jobs = append(f.jobs, job)
	return "stream-id-1", nil
}

func testRetrievalConfig() *config.RetrievalConfig {
	return &config.RetrievalConfig{
		Attempts:                1,
		TopK:                    8,
		MaxContextChars:         8000,
		MaxCitations:            10,
		MaxChunks:               8,
		MinCitationsBeforeBoost: 3,
	}
}

func okServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func publicChunk(title, url, content string) *entity.EvidenceChunk {
	return &entity.EvidenceChunk{
		Content:  content,
		Metadata: map[string]string{"title": title, "url": url, "source": "index"},
	}
}

func TestResolvePrivateNoSourcesRejected(t *testing.T) {
	web := &fakeWeb{results: []*websearch.Result{{Title: "never", URL: "https://never.example"}}}
	r := NewResolver(testRetrievalConfig(), &fakeIndex{}, &fakeDocs{}, newTestVerifier(), &fakeCollector{}, web, &fakePublisher{})

	req := &entity.GenerationRequest{Topic: "escalation policy", Mode: entity.ModePrivate}
	_, err := r.Resolve(context.Background(), req)
	require.ErrorIs(t, err, pkgerrors.ErrNoSources)

	// 私有模式绝不触碰互联网兜底
	assert.Zero(t, web.calls)
}

func TestResolvePrivateSynthesizesSOPCitation(t *testing.T) {
	idx := &fakeIndex{chunks: map[string][]*entity.EvidenceChunk{
		string(entity.ScopePrivate): {
			{Content: "Step 1: notify the incident owner.", Metadata: map[string]string{"title": "Escalation SOP"}},
		},
	}}
	r := NewResolver(testRetrievalConfig(), idx, &fakeDocs{}, newTestVerifier(), nil, nil, nil)

	req := &entity.GenerationRequest{Topic: "escalation policy", Mode: entity.ModePrivate}
	set, err := r.Resolve(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, set.Citations, 1)
	assert.Equal(t, "Internal Standard Operating Procedures", set.Citations[0].Title)
	assert.Equal(t, "SOP", set.Citations[0].Source)
	assert.Empty(t, set.Citations[0].URL)
	assert.Contains(t, set.Context, "notify the incident owner")
}

func TestResolvePrivateKeywordFallback(t *testing.T) {
	docs := &fakeDocs{docs: map[entity.DocumentScope][]*entity.Document{
		entity.ScopePrivate: {
			{Title: "Access Review SOP", Content: "Quarterly access reviews are mandatory."},
		},
	}}
	r := NewResolver(testRetrievalConfig(), &fakeIndex{}, docs, newTestVerifier(), nil, nil, nil)

	req := &entity.GenerationRequest{Topic: "access reviews", Mode: entity.ModePrivate}
	set, err := r.Resolve(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, set.Citations, 1)
	assert.Equal(t, "SOP", set.Citations[0].Source)
	assert.Contains(t, set.Context, "Quarterly access reviews")
}

func TestResolvePublicVectorHitVerifiedCitations(t *testing.T) {
	srv := okServer(t)
	idx := &fakeIndex{chunks: map[string][]*entity.EvidenceChunk{
		string(entity.ScopePublic): {
			publicChunk("Guidance A", srv.URL+"/a", "Guidance A content."),
			publicChunk("Guidance B", srv.URL+"/b", "Guidance B content."),
			publicChunk("Guidance A again", srv.URL+"/a", "Duplicate URL chunk."),
			publicChunk("Dead link", "https://127.0.0.1:1/dead", "Unreachable content."),
		},
	}}
	cfg := testRetrievalConfig()
	cfg.MinCitationsBeforeBoost = 1
	r := NewResolver(cfg, idx, &fakeDocs{}, newTestVerifier(), nil, nil, nil)

	req := &entity.GenerationRequest{Topic: "guidance", Mode: entity.ModeNews}
	set, err := r.Resolve(context.Background(), req)
	require.NoError(t, err)

	// 重复 URL 去重、不可达来源剔除
	require.Len(t, set.Citations, 2)
	assert.Equal(t, "Guidance A", set.Citations[0].Title)
	assert.Equal(t, "Guidance B", set.Citations[1].Title)
	assert.False(t, set.InternetFallbackUsed)
}

func TestResolvePublicBoostRanksCollectedDocuments(t *testing.T) {
	srv := okServer(t)
	coll := &fakeCollector{resp: &collector.CollectResponse{
		Inserted: 3,
		Documents: []*collector.CollectedDocument{
			{Title: "off-topic piece", URL: srv.URL + "/off", Source: "web", Content: "nothing relevant whatsoever"},
			{Title: "insulin pricing reform explained", URL: srv.URL + "/on", Source: "web", Content: "insulin pricing reform analysis"},
		},
	}}
	pub := &fakePublisher{}
	r := NewResolver(testRetrievalConfig(), &fakeIndex{}, &fakeDocs{}, newTestVerifier(), coll, nil, pub)

	req := &entity.GenerationRequest{Topic: "insulin pricing reform", Mode: entity.ModeNews, UserID: "u-1"}
	set, err := r.Resolve(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, coll.calls)
	require.Len(t, pub.jobs, 1)
	assert.Equal(t, "insulin pricing reform", pub.jobs[0].Keyword)
	assert.True(t, strings.HasPrefix(pub.jobs[0].JobID, "collect-"))

	require.NotEmpty(t, set.Citations)
	// 重合度最高的采集文档排在前
	assert.Equal(t, "insulin pricing reform explained", set.Citations[0].Title)
}

func TestResolvePublicInternetFallback(t *testing.T) {
	srv := okServer(t)
	web := &fakeWeb{
		results: []*websearch.Result{
			{Title: "Web result", URL: srv.URL + "/page", Snippet: "short snippet"},
		},
		content: "Full fetched page content.",
	}
	r := NewResolver(testRetrievalConfig(), &fakeIndex{}, &fakeDocs{}, newTestVerifier(), nil, web, nil)

	req := &entity.GenerationRequest{Topic: "obscure niche topic", Mode: entity.ModeGeneral}
	set, err := r.Resolve(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, set.InternetFallbackUsed)
	require.Len(t, set.Citations, 1)
	assert.Equal(t, "Web result", set.Citations[0].Title)
	assert.Contains(t, set.Context, "Full fetched page content.")
	require.NotEmpty(t, set.Warnings)
	assert.Contains(t, set.Warnings[len(set.Warnings)-1], "internet fallback")
}

func TestResolvePublicFallbackContextComesFirst(t *testing.T) {
	srv := okServer(t)
	idx := &fakeIndex{chunks: map[string][]*entity.EvidenceChunk{
		string(entity.ScopePublic): {
			// 有内容但引用 URL 不可达，验证后引用清零
			publicChunk("Dead source", "https://127.0.0.1:1/dead", "Stale index content."),
		},
	}}
	web := &fakeWeb{
		results: []*websearch.Result{{Title: "Fresh", URL: srv.URL + "/fresh", Snippet: "snippet"}},
		content: "Fresh fallback content.",
	}
	r := NewResolver(testRetrievalConfig(), idx, &fakeDocs{}, newTestVerifier(), nil, web, nil)

	req := &entity.GenerationRequest{Topic: "stale topic", Mode: entity.ModeGeneral}
	set, err := r.Resolve(context.Background(), req)
	require.NoError(t, err)

	require.True(t, set.InternetFallbackUsed)
	fallbackPos := strings.Index(set.Context, "Fresh fallback content.")
	stalePos := strings.Index(set.Context, "Stale index content.")
	require.GreaterOrEqual(t, fallbackPos, 0)
	require.GreaterOrEqual(t, stalePos, 0)
	assert.Less(t, fallbackPos, stalePos)
}

func TestResolveContextTruncation(t *testing.T) {
	cfg := testRetrievalConfig()
	cfg.MaxContextChars = 100
	idx := &fakeIndex{chunks: map[string][]*entity.EvidenceChunk{
		string(entity.ScopePrivate): {
			{Content: strings.Repeat("procedure step ", 50)},
		},
	}}
	r := NewResolver(cfg, idx, &fakeDocs{}, newTestVerifier(), nil, nil, nil)

	req := &entity.GenerationRequest{Topic: "long sop", Mode: entity.ModePrivate}
	set, err := r.Resolve(context.Background(), req)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(set.Context), 100)
}

func TestTruncateContextKeepsRuneBoundary(t *testing.T) {
	cfg := testRetrievalConfig()
	cfg.MaxContextChars = 100
	r := NewResolver(cfg, &fakeIndex{}, &fakeDocs{}, newTestVerifier(), nil, nil, nil)

	// 每个汉字 3 字节，100 落在第 34 个字符中间
	set := &entity.EvidenceSet{Context: strings.Repeat("药品合规指引", 20)}
	r.truncateContext(set)

	assert.Equal(t, 99, len(set.Context))
	assert.True(t, utf8.ValidString(set.Context))

	short := &entity.EvidenceSet{Context: "unchanged"}
	r.truncateContext(short)
	assert.Equal(t, "unchanged", short.Context)
}
