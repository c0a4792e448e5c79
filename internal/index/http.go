package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/kona-ai/kona/internal/faults"
	"github.com/kona-ai/kona/internal/log"
)

// HTTPIndex talks to a managed retrieval service over JSON/HTTP. The query
// response format varies between service versions, so parsing is
// deliberately tolerant: contexts may arrive as a flat list or nested one
// level deeper, and the text field goes by several names.
type HTTPIndex struct {
	baseURL string
	client  *http.Client
	logger  log.Logger
}

var _ Index = (*HTTPIndex)(nil)

// NewHTTPIndex creates an HTTPIndex. A nil client gets a 30s timeout
// default.
func NewHTTPIndex(baseURL string, client *http.Client, logger log.Logger) (*HTTPIndex, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("index base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parsing index base URL: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &HTTPIndex{baseURL: baseURL, client: client, logger: logger}, nil
}

func (h *HTTPIndex) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w (%w)", method, path, err, faults.ErrNetwork)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s %s: status %d: %s: %w",
			method, path, resp.StatusCode, bytes.TrimSpace(raw), faults.ErrNetwork)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w (%w)", method, path, err, faults.ErrParse)
	}
	return nil
}

func (h *HTTPIndex) EnsureCorpus(ctx context.Context, name string) (CorpusRef, error) {
	if name == "" {
		return CorpusRef{}, fmt.Errorf("corpus name is required")
	}

	var resp struct {
		ID   uuid.UUID `json:"id"`
		Name string    `json:"name"`
	}
	err := h.do(ctx, http.MethodPost, "/v1/corpora",
		map[string]string{"name": name}, &resp)
	if err != nil {
		return CorpusRef{}, fmt.Errorf("ensuring corpus %q: %w", name, err)
	}
	return CorpusRef{ID: resp.ID, Name: resp.Name}, nil
}

func (h *HTTPIndex) ImportChunks(ctx context.Context, corpus CorpusRef, chunks []ChunkRecord) error {
	if len(chunks) == 0 {
		return nil
	}

	type wireChunk struct {
		FileKey string `json:"fileKey"`
		Index   int    `json:"index"`
		Text    string `json:"text"`
		Offset  int    `json:"offset"`
		Length  int    `json:"length"`
	}
	payload := struct {
		Chunks []wireChunk `json:"chunks"`
	}{Chunks: make([]wireChunk, len(chunks))}
	for i, c := range chunks {
		payload.Chunks[i] = wireChunk{
			FileKey: c.FileKey, Index: c.Index, Text: c.Text,
			Offset: c.Offset, Length: c.Length,
		}
	}

	path := fmt.Sprintf("/v1/corpora/%s/chunks:import", corpus.ID)
	if err := h.do(ctx, http.MethodPost, path, payload, nil); err != nil {
		return fmt.Errorf("importing %d chunks: %w", len(chunks), err)
	}
	return nil
}

func (h *HTTPIndex) ListFiles(ctx context.Context, corpus CorpusRef) ([]FileInfo, error) {
	var resp struct {
		Files []struct {
			Key        string    `json:"key"`
			ChunkCount int       `json:"chunkCount"`
			CreatedAt  time.Time `json:"createdAt"`
		} `json:"files"`
	}
	path := fmt.Sprintf("/v1/corpora/%s/files", corpus.ID)
	if err := h.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("listing corpus files: %w", err)
	}

	files := make([]FileInfo, len(resp.Files))
	for i, f := range resp.Files {
		files[i] = FileInfo{Key: f.Key, ChunkCount: f.ChunkCount, CreatedAt: f.CreatedAt}
	}
	return files, nil
}

func (h *HTTPIndex) DeleteFile(ctx context.Context, corpus CorpusRef, fileKey string) error {
	path := fmt.Sprintf("/v1/corpora/%s/files/%s", corpus.ID, url.PathEscape(fileKey))
	if err := h.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("deleting file %q: %w", fileKey, err)
	}
	return nil
}

func (h *HTTPIndex) DeleteCorpus(ctx context.Context, corpus CorpusRef) error {
	path := fmt.Sprintf("/v1/corpora/%s", corpus.ID)
	if err := h.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("deleting corpus %q: %w", corpus.Name, err)
	}
	return nil
}

// Query sends the retrieval request and extracts context strings from
// whichever response shape the service speaks.
func (h *HTTPIndex) Query(ctx context.Context, corpus CorpusRef, query string, topK int) ([]string, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	var resp queryResponse
	path := fmt.Sprintf("/v1/corpora/%s:query", corpus.ID)
	err := h.do(ctx, http.MethodPost, path, map[string]any{
		"corpusReference": corpus.ID.String(),
		"queryText":       query,
		"topK":            topK,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("querying corpus %q: %w", corpus.Name, err)
	}

	return resp.contextTexts(), nil
}

// queryResponse holds the raw contexts payload for shape probing.
type queryResponse struct {
	Contexts json.RawMessage `json:"contexts"`
}

// contextObject is one retrieved passage. Services disagree on the field
// name carrying the text; probe in priority order and take the first
// non-empty value.
type contextObject struct {
	Text      string `json:"text"`
	Content   string `json:"content"`
	ChunkText string `json:"chunkText"`
	Snippet   string `json:"snippet"`
}

func (c contextObject) text() string {
	for _, v := range []string{c.Text, c.Content, c.ChunkText, c.Snippet} {
		if v != "" {
			return v
		}
	}
	return ""
}

// contextTexts accepts both known shapes: a flat list of context objects,
// or the same list nested one level deeper under a second "contexts" key.
func (r queryResponse) contextTexts() []string {
	if len(r.Contexts) == 0 {
		return nil
	}

	var flat []contextObject
	if err := json.Unmarshal(r.Contexts, &flat); err != nil {
		var nested struct {
			Contexts []contextObject `json:"contexts"`
		}
		if err := json.Unmarshal(r.Contexts, &nested); err != nil {
			return nil
		}
		flat = nested.Contexts
	}

	texts := make([]string, 0, len(flat))
	for _, c := range flat {
		texts = append(texts, c.text())
	}
	return texts
}
