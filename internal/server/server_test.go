package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/katha-archive/katha/internal/config"
	"github.com/katha-archive/katha/internal/enrich"
	"github.com/katha-archive/katha/internal/ingest"
	"github.com/katha-archive/katha/internal/server"
	"github.com/katha-archive/katha/internal/transcript"
	"github.com/katha-archive/katha/internal/validate"
	embmock "github.com/katha-archive/katha/pkg/provider/embeddings/mock"
	llmmock "github.com/katha-archive/katha/pkg/provider/llm/mock"
	"github.com/katha-archive/katha/pkg/vectorstore"
)

type fakeIngestor struct {
	res          *ingest.Result
	err          error
	lastFilename string
	lastMeta     ingest.Metadata
}

func (f *fakeIngestor) Run(ctx context.Context, filename string, data []byte, meta ingest.Metadata) (*ingest.Result, error) {
	f.lastFilename = filename
	f.lastMeta = meta
	return f.res, f.err
}

type fakeStore struct {
	mu          sync.Mutex
	pingErr     error
	searchRes   []vectorstore.SearchResult
	records     []vectorstore.Record
	transcripts []vectorstore.TranscriptInfo
	deleted     int64
	patches     map[uuid.UUID]map[string]any
}

func (f *fakeStore) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeStore) Search(ctx context.Context, embedding []float32, topK int, filter vectorstore.Filter) ([]vectorstore.SearchResult, error) {
	return f.searchRes, nil
}

func (f *fakeStore) ListByTranscript(ctx context.Context, name string, limit, offset int) ([]vectorstore.Record, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset >= len(f.records) {
		return nil, nil
	}
	end := min(offset+limit, len(f.records))
	return f.records[offset:end], nil
}

func (f *fakeStore) UpdatePayload(ctx context.Context, id uuid.UUID, patch map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.patches == nil {
		f.patches = make(map[uuid.UUID]map[string]any)
	}
	f.patches[id] = patch
	return nil
}

func (f *fakeStore) DeleteTranscript(ctx context.Context, name string) (int64, error) {
	return f.deleted, nil
}

func (f *fakeStore) ListTranscripts(ctx context.Context) ([]vectorstore.TranscriptInfo, error) {
	return f.transcripts, nil
}

// sampleReport builds a real validation report over a trivially complete
// cue/chunk pair.
func sampleReport(t *testing.T) *validate.Report {
	t.Helper()
	cues := []transcript.Cue{{Start: "00:00:00,000", End: "00:00:05,000", Text: "Hello world"}}
	chunks := []transcript.Chunk{{Start: "00:00:00,000", End: "00:00:05,000", Text: "Hello world"}}
	rep, err := validate.Validate(cues, chunks)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return rep
}

func newTestServer(t *testing.T, ing server.Ingestor, store server.Store, opts server.Options) *httptest.Server {
	t.Helper()
	llmProvider := &llmmock.Provider{Response: `{"people": ["Anandamayi Ma"]}`}
	srv := server.New(ing, store, &embmock.Provider{},
		enrich.NewEntityExtractor(llmProvider), enrich.NewBioExtractor(llmProvider), opts, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// uploadRequest builds a multipart POST body with the given file and fields.
func uploadRequest(t *testing.T, url, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fw.Write([]byte(content))
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()

	req, err := http.NewRequest("POST", url+"/transcripts", &buf)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return body
}

func TestUploadSuccess(t *testing.T) {
	ing := &fakeIngestor{res: &ingest.Result{
		TranscriptName: "morning_talk",
		ChunkCount:     3,
		GlobalTags:     []string{"patience"},
		Report:         sampleReport(t),
	}}
	ts := newTestServer(t, ing, &fakeStore{}, server.Options{})

	req := uploadRequest(t, ts.URL, "morning_talk.srt", "1\n00:00:00,000 --> 00:00:05,000\nHello\n", map[string]string{
		"category":  "Morning Talk",
		"misc_tags": "river, dawn , ",
	})
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body := decodeBody(t, resp)
	if body["success"] != true {
		t.Errorf("success = %v, want true", body["success"])
	}
	if body["chunk_count"] != float64(3) {
		t.Errorf("chunk_count = %v, want 3", body["chunk_count"])
	}
	if ing.lastFilename != "morning_talk.srt" {
		t.Errorf("filename = %q", ing.lastFilename)
	}
	if ing.lastMeta.Category != "Morning Talk" {
		t.Errorf("category not forwarded: %+v", ing.lastMeta)
	}
	if want := []string{"river", "dawn"}; len(ing.lastMeta.MiscTags) != 2 ||
		ing.lastMeta.MiscTags[0] != want[0] || ing.lastMeta.MiscTags[1] != want[1] {
		t.Errorf("misc_tags = %v, want %v", ing.lastMeta.MiscTags, want)
	}

	validation, ok := body["validation"].(map[string]any)
	if !ok {
		t.Fatal("missing validation summary")
	}
	if validation["complete"] != true {
		t.Errorf("validation.complete = %v", validation["complete"])
	}
	if _, present := validation["detailed_report"]; present {
		t.Error("detailed_report should only appear in detailed mode")
	}
}

func TestUploadDetailedModeIncludesReport(t *testing.T) {
	ing := &fakeIngestor{res: &ingest.Result{TranscriptName: "t", ChunkCount: 1, Report: sampleReport(t)}}
	ts := newTestServer(t, ing, &fakeStore{}, server.Options{Mode: config.ValidationDetailed})

	req := uploadRequest(t, ts.URL, "t.srt", "x", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	body := decodeBody(t, resp)
	validation := body["validation"].(map[string]any)
	report, ok := validation["detailed_report"].(string)
	if !ok || !strings.Contains(report, "TRANSCRIPT VALIDATION REPORT") {
		t.Errorf("detailed_report missing or malformed: %v", validation["detailed_report"])
	}
}

func TestUploadStrictRejection(t *testing.T) {
	rep := sampleReport(t)
	ing := &fakeIngestor{
		res: &ingest.Result{Report: rep},
		err: &ingest.ValidationError{Report: rep},
	}
	ts := newTestServer(t, ing, &fakeStore{}, server.Options{Mode: config.ValidationStrict})

	req := uploadRequest(t, ts.URL, "t.srt", "x", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["success"] != false {
		t.Errorf("success = %v, want false", body["success"])
	}
	if _, ok := body["validation"]; !ok {
		t.Error("rejection response should carry the validation summary")
	}
}

func TestUploadFormatErrorMapsTo400(t *testing.T) {
	ing := &fakeIngestor{err: &transcript.FormatError{Input: "garbage"}}
	ts := newTestServer(t, ing, &fakeStore{}, server.Options{})

	req := uploadRequest(t, ts.URL, "t.srt", "x", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUploadMissingFilePart(t *testing.T) {
	ts := newTestServer(t, &fakeIngestor{}, &fakeStore{}, server.Options{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("category", "Morning Talk")
	mw.Close()

	req, _ := http.NewRequest("POST", ts.URL+"/transcripts", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSearch(t *testing.T) {
	id := uuid.New()
	store := &fakeStore{searchRes: []vectorstore.SearchResult{{
		Record: vectorstore.Record{
			ID:             id,
			TranscriptName: "morning_talk",
			Index:          2,
			Content:        "The teacher spoke of patience.",
			Payload:        vectorstore.Payload{Category: "Morning Talk"},
		},
		Distance: 0.12,
	}}}
	ts := newTestServer(t, &fakeIngestor{}, store, server.Options{})

	body := strings.NewReader(`{"query": "patience", "top_k": 5, "filter": {"category": "Morning Talk"}}`)
	resp, err := http.Post(ts.URL+"/search", "application/json", body)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	out := decodeBody(t, resp)
	results, ok := out["results"].([]any)
	if !ok || len(results) != 1 {
		t.Fatalf("results = %v, want one hit", out["results"])
	}
	hit := results[0].(map[string]any)
	if hit["id"] != id.String() {
		t.Errorf("id = %v", hit["id"])
	}
	if hit["chunk_index"] != float64(2) {
		t.Errorf("chunk_index = %v, want 2", hit["chunk_index"])
	}
	if hit["distance"] != 0.12 {
		t.Errorf("distance = %v, want 0.12", hit["distance"])
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	ts := newTestServer(t, &fakeIngestor{}, &fakeStore{}, server.Options{})

	resp, err := http.Post(ts.URL+"/search", "application/json", strings.NewReader(`{"query": "  "}`))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestMetadataVocabularies(t *testing.T) {
	ts := newTestServer(t, &fakeIngestor{}, &fakeStore{}, server.Options{})

	resp, err := http.Get(ts.URL + "/metadata")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	out := decodeBody(t, resp)
	cats, ok := out["categories"].([]any)
	if !ok || len(cats) != len(enrich.SatsangCategories) {
		t.Errorf("categories = %v, want %v", out["categories"], enrich.SatsangCategories)
	}
	if locs, ok := out["locations"].([]any); !ok || len(locs) == 0 {
		t.Errorf("locations = %v, want the known recording locations", out["locations"])
	}
	if spk, ok := out["speakers"].([]any); !ok || len(spk) == 0 || spk[0] != "Gurudev" {
		t.Errorf("speakers = %v, want [Gurudev]", out["speakers"])
	}
}

func TestListTranscripts(t *testing.T) {
	store := &fakeStore{transcripts: []vectorstore.TranscriptInfo{
		{Name: "morning_talk", ChunkCount: 12},
		{Name: "evening_talk", ChunkCount: 8},
	}}
	ts := newTestServer(t, &fakeIngestor{}, store, server.Options{})

	resp, err := http.Get(ts.URL + "/transcripts")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	out := decodeBody(t, resp)
	list, ok := out["transcripts"].([]any)
	if !ok || len(list) != 2 {
		t.Fatalf("transcripts = %v, want 2 entries", out["transcripts"])
	}
}

func TestListChunks(t *testing.T) {
	store := &fakeStore{records: []vectorstore.Record{
		{ID: uuid.New(), TranscriptName: "t", Index: 0, Content: "first"},
		{ID: uuid.New(), TranscriptName: "t", Index: 1, Content: "second"},
	}}
	ts := newTestServer(t, &fakeIngestor{}, store, server.Options{})

	resp, err := http.Get(ts.URL + "/transcripts/t/chunks")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	out := decodeBody(t, resp)
	chunks := out["chunks"].([]any)
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}
}

func TestListChunksNotFound(t *testing.T) {
	ts := newTestServer(t, &fakeIngestor{}, &fakeStore{}, server.Options{})

	resp, err := http.Get(ts.URL + "/transcripts/nope/chunks")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestDeleteTranscript(t *testing.T) {
	store := &fakeStore{deleted: 7}
	ts := newTestServer(t, &fakeIngestor{}, store, server.Options{})

	req, _ := http.NewRequest("DELETE", ts.URL+"/transcripts/morning_talk", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	out := decodeBody(t, resp)
	if out["chunks_deleted"] != float64(7) {
		t.Errorf("chunks_deleted = %v, want 7", out["chunks_deleted"])
	}
}

func TestDeleteTranscriptNotFound(t *testing.T) {
	ts := newTestServer(t, &fakeIngestor{}, &fakeStore{deleted: 0}, server.Options{})

	req, _ := http.NewRequest("DELETE", ts.URL+"/transcripts/nope", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestExtractEntities(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	store := &fakeStore{records: []vectorstore.Record{
		{ID: ids[0], Index: 0, Content: "Anandamayi Ma visited the ashram."},
		{ID: ids[1], Index: 1, Content: "She spoke near the Ganga."},
	}}
	ts := newTestServer(t, &fakeIngestor{}, store, server.Options{})

	resp, err := http.Post(ts.URL+"/transcripts/t/entities", "application/json", nil)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	out := decodeBody(t, resp)
	if out["chunks_processed"] != float64(2) {
		t.Errorf("chunks_processed = %v, want 2", out["chunks_processed"])
	}

	for _, id := range ids {
		patch, ok := store.patches[id]
		if !ok {
			t.Fatalf("no payload patch for chunk %s", id)
		}
		if _, ok := patch["entities"]; !ok {
			t.Errorf("patch missing entities key: %v", patch)
		}
	}
}

func TestExtractBioSetsFlags(t *testing.T) {
	id := uuid.New()
	store := &fakeStore{records: []vectorstore.Record{{ID: id, Content: "As a child he lived by the river."}}}

	llmProvider := &llmmock.Provider{Response: `{"early_life_childhood": ["As a child he lived by the river."]}`}
	srv := server.New(&fakeIngestor{}, store, &embmock.Provider{},
		enrich.NewEntityExtractor(llmProvider), enrich.NewBioExtractor(llmProvider), server.Options{}, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Post(ts.URL+"/transcripts/t/bio", "application/json", nil)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	patch := store.patches[id]
	if patch == nil {
		t.Fatal("no payload patch applied")
	}
	if patch["has_early_life_childhood"] != true {
		t.Error("has_early_life_childhood flag not set")
	}
	if patch["has_pkd_relationship"] != false {
		t.Error("absent categories should reset their flag")
	}
	if _, ok := patch["biographical_extractions"]; !ok {
		t.Error("patch missing biographical_extractions")
	}
}

func TestEnrichWithoutLLM(t *testing.T) {
	srv := server.New(&fakeIngestor{}, &fakeStore{}, &embmock.Provider{}, nil, nil, server.Options{}, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	for _, path := range []string{"/transcripts/t/entities", "/transcripts/t/bio"} {
		resp, err := http.Post(ts.URL+path, "application/json", nil)
		if err != nil {
			t.Fatalf("Post %s: %v", path, err)
		}
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("%s status = %d, want 503", path, resp.StatusCode)
		}
	}
}

func TestReadyzReflectsDatabase(t *testing.T) {
	ts := newTestServer(t, &fakeIngestor{}, &fakeStore{pingErr: errors.New("down")}, server.Options{})

	resp, err := http.Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("readyz status = %d, want 503", resp.StatusCode)
	}
	out := decodeBody(t, resp)
	if out["status"] != "fail" {
		t.Errorf("status = %v, want fail", out["status"])
	}
	checks, ok := out["checks"].(map[string]any)
	if !ok || !strings.HasPrefix(checks["database"].(string), "fail") {
		t.Errorf("checks = %v, want a failing database check", out["checks"])
	}

	resp, err = http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", resp.StatusCode)
	}
}
