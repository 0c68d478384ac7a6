package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/relaydocs/pagesync/internal/metrics"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.workspace.internal/v1"

// ClientConfig configures a Client (spec §4.1).
type ClientConfig struct {
	BaseURL           string
	Token             string
	APIVersion        string
	ReqPerSec         float64
	MaxRetries        int
	MaxIdleConnsTotal int // connection pool size, spec default 32
	AttemptTimeout    time.Duration
	OperationTimeout  time.Duration
}

// DefaultClientConfig returns spec-mandated defaults.
func DefaultClientConfig(token string) ClientConfig {
	return ClientConfig{
		BaseURL:           defaultBaseURL,
		Token:             token,
		APIVersion:        "2022-06-28",
		ReqPerSec:         3,
		MaxRetries:        defaultMaxRetries,
		MaxIdleConnsTotal: 32,
		AttemptTimeout:    60 * time.Second,
		OperationTimeout:  120 * time.Second,
	}
}

// Client is the token-aware workspace client (spec §4.1). It is safe for
// concurrent use by arbitrary callers: the limiter and connection pool
// are shared process-wide state, exactly as spec §5 "Shared resources"
// requires.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New builds a Client. The limiter is a global token bucket shared by
// every caller (spec §4.1, "Pacing": "The limiter is global across
// concurrent jobs").
func New(cfg ClientConfig) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConnsTotal,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsTotal,
		MaxConnsPerHost:     cfg.MaxIdleConnsTotal,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.AttemptTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.ReqPerSec), 1),
	}
}

// PageResult is the decoded response of createPage/retrievePage.
type PageResult struct {
	ID         string
	URL        string
	Properties map[string]any
	Archived   bool
}

// AppendResult is the decoded response of appendChildren: the ids the
// workspace assigned to each submitted child, in order.
type AppendResult struct {
	BlockIDs []string
}

// ListChildrenResult is one page of listChildren results.
type ListChildrenResult struct {
	Blocks     []RemoteBlock
	HasMore    bool
	NextCursor string
}

// RemoteBlock is a block as read back from the workspace: it carries an
// assigned ID and raw rich-text runs for the sweeper and validator to
// inspect, without needing the full typed Block payload.
type RemoteBlock struct {
	ID       string
	Kind     BlockKind
	RichText []RichRun
	HasChildren bool
}

// QueryResult is the decoded response of queryDatabase.
type QueryResult struct {
	Results    []map[string]any
	HasMore    bool
	NextCursor string
}

// CreatePageInput carries the fields needed to create a page (spec §6.1,
// POST /api/pages).
type CreatePageInput struct {
	DatabaseID string
	Title      string
	Icon       string
	Cover      string
	Children   []*Block
}

// CreatePage creates a new page under databaseId with the given title and
// initial children (spec §4.1 contract).
func (c *Client) CreatePage(ctx context.Context, in CreatePageInput) (*PageResult, error) {
	body := map[string]any{
		"parent": map[string]any{"type": "database_id", "database_id": in.DatabaseID},
		"properties": map[string]any{
			"title": map[string]any{
				"title": richTextJSON([]RichRun{{Text: in.Title}}),
			},
		},
	}
	if in.Icon != "" {
		body["icon"] = map[string]any{"type": "emoji", "emoji": in.Icon}
	}
	if in.Cover != "" {
		body["cover"] = map[string]any{"type": "external", "external": map[string]any{"url": in.Cover}}
	}
	if len(in.Children) > 0 {
		body["children"] = in.Children
	}

	respBody, err := c.do(ctx, "createPage", http.MethodPost, "/pages", body)
	if err != nil {
		return nil, err
	}
	return decodePageResult(respBody)
}

// RetrievePage fetches page metadata by id.
func (c *Client) RetrievePage(ctx context.Context, pageID string) (*PageResult, error) {
	respBody, err := c.do(ctx, "retrievePage", http.MethodGet, "/pages/"+NormalizePageID(pageID), nil)
	if err != nil {
		return nil, err
	}
	return decodePageResult(respBody)
}

// UpdatePageProperties patches a page's properties (spec §4.1 contract).
func (c *Client) UpdatePageProperties(ctx context.Context, pageID string, props map[string]any) error {
	body := map[string]any{"properties": props}
	_, err := c.do(ctx, "updatePageProperties", http.MethodPatch, "/pages/"+NormalizePageID(pageID), body)
	return err
}

// AppendChildren appends children to parent (a page or block id). The
// caller is responsible for keeping len(children) <= 100 (spec §8,
// property 3); this method does not chunk on its own.
func (c *Client) AppendChildren(ctx context.Context, parentID string, children []*Block) (*AppendResult, error) {
	body := map[string]any{"children": children}
	respBody, err := c.do(ctx, "appendChildren", http.MethodPatch, "/blocks/"+NormalizePageID(parentID)+"/children", body)
	if err != nil {
		return nil, err
	}
	return decodeAppendResult(respBody)
}

// UpdateBlock replaces a block's payload (used by the sweeper to strip
// markers from rich-text runs).
func (c *Client) UpdateBlock(ctx context.Context, blockID string, block *Block) error {
	_, err := c.do(ctx, "updateBlock", http.MethodPatch, "/blocks/"+NormalizePageID(blockID), block)
	return err
}

// DeleteBlock archives (soft-deletes) a block.
func (c *Client) DeleteBlock(ctx context.Context, blockID string) error {
	body := map[string]any{"archived": true}
	_, err := c.do(ctx, "deleteBlock", http.MethodDelete, "/blocks/"+NormalizePageID(blockID), body)
	return err
}

// ListChildren lists one page of a block/page's children, following
// cursor.
func (c *Client) ListChildren(ctx context.Context, parentID, cursor string) (*ListChildrenResult, error) {
	path := "/blocks/" + NormalizePageID(parentID) + "/children?page_size=100"
	if cursor != "" {
		path += "&start_cursor=" + cursor
	}
	respBody, err := c.do(ctx, "listChildren", http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return decodeListChildrenResult(respBody)
}

// QueryDatabase proxies a database query (spec §6.1, POST
// /api/databases/{id}/query).
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, filter any, cursor string) (*QueryResult, error) {
	body := map[string]any{}
	if filter != nil {
		body["filter"] = filter
	}
	if cursor != "" {
		body["start_cursor"] = cursor
	}
	respBody, err := c.do(ctx, "queryDatabase", http.MethodPost, "/databases/"+NormalizePageID(databaseID)+"/query", body)
	if err != nil {
		return nil, err
	}
	var decoded struct {
		Results    []map[string]any `json:"results"`
		HasMore    bool             `json:"has_more"`
		NextCursor *string          `json:"next_cursor"`
	}
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, &Error{Kind: KindPermanent, Op: "queryDatabase", Message: "decode response: " + err.Error(), Cause: err}
	}
	out := &QueryResult{Results: decoded.Results, HasMore: decoded.HasMore}
	if decoded.NextCursor != nil {
		out.NextCursor = *decoded.NextCursor
	}
	return out, nil
}

// RetrieveDatabase fetches a database's schema (spec §6.1, GET
// /api/databases/{id}).
func (c *Client) RetrieveDatabase(ctx context.Context, databaseID string) (map[string]any, error) {
	respBody, err := c.do(ctx, "retrieveDatabase", http.MethodGet, "/databases/"+NormalizePageID(databaseID), nil)
	if err != nil {
		return nil, err
	}
	var decoded map[string]any
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, &Error{Kind: KindPermanent, Op: "retrieveDatabase", Message: "decode response: " + err.Error(), Cause: err}
	}
	return decoded, nil
}

// do performs one logical workspace operation, with pacing and retries
// (spec §4.1 "Retry policy", "Pacing"; spec §5, per-attempt/per-operation
// timeouts). Every attempt acquires a fresh rate-limiter token; tokens
// are never held across retries (spec §4.1, "Pacing").
func (c *Client) do(ctx context.Context, op, method, path string, body any) ([]byte, error) {
	opCtx, cancel := context.WithTimeout(ctx, c.cfg.OperationTimeout)
	defer cancel()

	var bodyBytes []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Kind: KindValidation, Op: op, Message: "marshal request: " + err.Error(), Cause: err}
		}
		bodyBytes = b
	}

	backoff := baseBackoff
	attempt := 0
	const maxIterations = 40 // safety bound: rate-limit waits don't consume `attempt`
	for iter := 0; iter < maxIterations; iter++ {
		select {
		case <-opCtx.Done():
			return nil, &Error{Kind: KindTransient, Op: op, Message: "operation deadline exceeded", Cause: opCtx.Err()}
		default:
		}

		if err := c.limiter.Wait(opCtx); err != nil {
			return nil, &Error{Kind: KindTransient, Op: op, Message: "rate limiter wait: " + err.Error(), Cause: err}
		}

		respBody, werr := c.send(opCtx, method, c.cfg.BaseURL+path, bodyBytes)
		if werr == nil {
			metrics.WorkspaceCallsTotal.WithLabelValues(op, "ok").Inc()
			return respBody, nil
		}
		werr.Op = op

		if werr.Kind == KindRateLimited {
			metrics.WorkspaceCallsTotal.WithLabelValues(op, string(werr.Kind)).Inc()
			delay := rateLimitDelay(werr.RetryAfter)
			if !sleepOrDone(opCtx, delay) {
				return nil, &Error{Kind: KindTransient, Op: op, Message: "cancelled during rate-limit wait", Cause: opCtx.Err()}
			}
			continue // rate-limit waits do not consume an attempt
		}

		if werr.retryable() && attempt < c.cfg.MaxRetries {
			metrics.WorkspaceCallsTotal.WithLabelValues(op, string(werr.Kind)).Inc()
			metrics.WorkspaceRetriesTotal.WithLabelValues(op).Inc()
			if !sleepOrDone(opCtx, backoff) {
				return nil, &Error{Kind: KindTransient, Op: op, Message: "cancelled during retry backoff", Cause: opCtx.Err()}
			}
			backoff = nextBackoff(backoff)
			attempt++
			continue
		}

		metrics.WorkspaceCallsTotal.WithLabelValues(op, string(werr.Kind)).Inc()
		return nil, werr
	}

	return nil, &Error{Kind: KindTransient, Op: op, Message: "exceeded maximum rate-limit/retry iterations"}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// send performs a single HTTP attempt and classifies the outcome. It
// never returns a raw *http.Response error: transport failures and
// non-2xx statuses are both converted to *Error (spec §7, "Propagation
// policy").
func (c *Client) send(ctx context.Context, method, url string, body []byte) ([]byte, *Error) {
	var reader io.Reader
	if body != nil {
		reader = cloneBody(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, &Error{Kind: KindPermanent, Message: "build request: " + err.Error(), Cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Notion-Version", c.cfg.APIVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify("", nil, nil, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify("", nil, nil, fmt.Errorf("read response body: %w", err))
	}

	if werr := classify("", resp, respBody, nil); werr != nil {
		return nil, werr
	}
	return respBody, nil
}

// NormalizePageID accepts either a 32-char hex id or an already-hyphenated
// 36-char UUID and returns the hyphenated form (spec §6.2, §9 open
// question (b)).
func NormalizePageID(id string) string {
	cleaned := strings.ToLower(strings.ReplaceAll(id, "-", ""))
	if len(cleaned) != 32 || !isHex(cleaned) {
		return id
	}
	return fmt.Sprintf("%s-%s-%s-%s-%s",
		cleaned[0:8], cleaned[8:12], cleaned[12:16], cleaned[16:20], cleaned[20:32])
}

func isHex(s string) bool {
	for _, ch := range s {
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') {
			return false
		}
	}
	return true
}

func decodePageResult(raw []byte) (*PageResult, error) {
	var decoded struct {
		ID         string         `json:"id"`
		URL        string         `json:"url"`
		Archived   bool           `json:"archived"`
		Properties map[string]any `json:"properties"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &Error{Kind: KindPermanent, Message: "decode page response: " + err.Error(), Cause: err}
	}
	return &PageResult{ID: decoded.ID, URL: decoded.URL, Archived: decoded.Archived, Properties: decoded.Properties}, nil
}

func decodeAppendResult(raw []byte) (*AppendResult, error) {
	var decoded struct {
		Results []struct {
			ID string `json:"id"`
		} `json:"results"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &Error{Kind: KindPermanent, Message: "decode append response: " + err.Error(), Cause: err}
	}
	ids := make([]string, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		ids = append(ids, r.ID)
	}
	return &AppendResult{BlockIDs: ids}, nil
}

func decodeListChildrenResult(raw []byte) (*ListChildrenResult, error) {
	// The workspace nests each block's typed payload under a key equal to
	// its "type" value, so decode into a generic map first to reach it.
	var generic struct {
		Results []map[string]any `json:"results"`
		HasMore bool             `json:"has_more"`
		NextCursor *string       `json:"next_cursor"`
	}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, &Error{Kind: KindPermanent, Message: "decode list-children response: " + err.Error(), Cause: err}
	}

	blocks := make([]RemoteBlock, 0, len(generic.Results))
	for _, r := range generic.Results {
		id, _ := r["id"].(string)
		kind, _ := r["type"].(string)
		hasChildren, _ := r["has_children"].(bool)
		rb := RemoteBlock{ID: id, Kind: BlockKind(kind), HasChildren: hasChildren}
		if payload, ok := r[kind].(map[string]any); ok {
			rb.RichText = decodeRichTextField(payload["rich_text"])
		}
		blocks = append(blocks, rb)
	}

	out := &ListChildrenResult{Blocks: blocks, HasMore: generic.HasMore}
	if generic.NextCursor != nil {
		out.NextCursor = *generic.NextCursor
	}
	return out, nil
}

func decodeRichTextField(raw any) []RichRun {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	runs := make([]RichRun, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		plain, _ := m["plain_text"].(string)
		runs = append(runs, RichRun{Text: plain})
	}
	return runs
}
