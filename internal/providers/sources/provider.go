// Package sources manages collected web content: fetching pages, saving
// them as sources, and deleting them. Fetching is idempotent and cacheable;
// deletion is destructive and gated behind human approval.
package sources

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/saintfish/chardet"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/curiolabs/curio/internal/logging"
	"github.com/curiolabs/curio/internal/registry"
	"github.com/curiolabs/curio/internal/store"
)

// Bucket is the named store holding saved sources.
const Bucket = "sources"

// MaxFetchSize caps fetched bodies at 10MB to prevent memory exhaustion.
const MaxFetchSize = 10 * 1024 * 1024

// Source is one saved piece of web content.
type Source struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	MediaType string    `json:"media_type"`
	SavedAt   time.Time `json:"saved_at"`
}

// Provider implements the sources service.
type Provider struct {
	client *resty.Client
	store  store.Store
	logger *logging.Logger
}

// NewProvider creates a sources provider. st may be nil; saved-source
// bookkeeping then fails soft while fetching keeps working.
func NewProvider(st store.Store, logger *logging.Logger) *Provider {
	if logger == nil {
		logger = logging.NewNop()
	}
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))

	return &Provider{
		client: client,
		store:  st,
		logger: logger.WithComponent("sources"),
	}
}

// Definition describes the service and its tools.
func (p *Provider) Definition() registry.Service {
	return registry.Service{
		ID:          "sources",
		Name:        "Sources",
		Description: "Collect, list, and remove web content sources",
		Category:    registry.CategorySources,
		Tools: []registry.Tool{
			{
				ID:          "sources.fetch",
				Name:        "Fetch",
				Description: "Fetch a URL and return its content with detected media type and charset",
				Cacheable:   true,
			},
			{
				ID:          "sources.save",
				Name:        "Save",
				Description: "Save fetched content as a source",
			},
			{
				ID:          "sources.list",
				Name:        "List",
				Description: "List saved sources",
			},
			{
				ID:          "sources.get",
				Name:        "Get",
				Description: "Get a saved source by id",
			},
			{
				ID:               "sources.delete",
				Name:             "Delete",
				Description:      "Permanently delete a saved source",
				RequiresApproval: true,
				ApprovalReason:   "Permanently removes a saved source and cannot be undone",
			},
		},
	}
}

// Execute runs a tool by ID.
func (p *Provider) Execute(ctx context.Context, toolID string, params map[string]any) (*registry.Result, error) {
	switch toolID {
	case "sources.fetch":
		return p.fetch(ctx, params)
	case "sources.save":
		return p.save(ctx, params)
	case "sources.list":
		return p.list(ctx)
	case "sources.get":
		return p.get(ctx, params)
	case "sources.delete":
		return p.delete(ctx, params)
	default:
		return registry.Failure(fmt.Sprintf("unknown tool: %s", toolID))
	}
}

func (p *Provider) fetch(ctx context.Context, params map[string]any) (*registry.Result, error) {
	url, ok := params["url"].(string)
	if !ok || url == "" {
		return registry.Failure("url parameter required")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return registry.Failure("only http and https URLs can be fetched")
	}

	resp, err := p.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return registry.Failure(fmt.Sprintf("fetch failed: %v", err))
	}
	if resp.StatusCode() >= 400 {
		return registry.Failure(fmt.Sprintf("fetch failed: status %d", resp.StatusCode()))
	}

	body := resp.Body()
	if len(body) > MaxFetchSize {
		return registry.Failure(fmt.Sprintf("content exceeds maximum size of %d bytes", MaxFetchSize))
	}

	return registry.Success(map[string]any{
		"url":        url,
		"title":      extractTitle(body),
		"content":    string(body),
		"media_type": mimetype.Detect(body).String(),
		"charset":    detectCharset(body),
		"status":     resp.StatusCode(),
	})
}

func (p *Provider) save(ctx context.Context, params map[string]any) (*registry.Result, error) {
	if p.store == nil {
		return registry.Failure("source storage unavailable")
	}

	url, _ := params["url"].(string)
	title, _ := params["title"].(string)
	content, ok := params["content"].(string)
	if !ok || content == "" {
		return registry.Failure("content parameter required")
	}

	src := Source{
		ID:        uuid.NewString(),
		URL:       url,
		Title:     title,
		Content:   content,
		MediaType: mimetype.Detect([]byte(content)).String(),
		SavedAt:   time.Now(),
	}

	raw, err := sonic.Marshal(src)
	if err != nil {
		return registry.Failure(fmt.Sprintf("source not serializable: %v", err))
	}
	if err := p.store.Put(ctx, Bucket, store.KV{Key: src.ID, Value: raw}); err != nil {
		return registry.Failure(fmt.Sprintf("save failed: %v", err))
	}

	p.logger.Info("source saved", zap.String("id", src.ID), zap.String("url", url))
	return registry.Success(map[string]any{"id": src.ID})
}

func (p *Provider) list(ctx context.Context) (*registry.Result, error) {
	if p.store == nil {
		return registry.Success(map[string]any{"sources": []any{}})
	}

	all, err := p.store.GetAll(ctx, Bucket)
	if err != nil {
		return registry.Success(map[string]any{"sources": []any{}})
	}

	sources := make([]any, 0, len(all))
	for _, kv := range all {
		var src Source
		if err := sonic.Unmarshal(kv.Value, &src); err != nil {
			p.logger.Warn("dropping undecodable source record", zap.String("key", kv.Key))
			continue
		}
		sources = append(sources, map[string]any{
			"id":       src.ID,
			"url":      src.URL,
			"title":    src.Title,
			"saved_at": src.SavedAt,
		})
	}
	return registry.Success(map[string]any{"sources": sources})
}

func (p *Provider) get(ctx context.Context, params map[string]any) (*registry.Result, error) {
	id, ok := params["id"].(string)
	if !ok || id == "" {
		return registry.Failure("id parameter required")
	}
	if p.store == nil {
		return registry.Failure("source not found: " + id)
	}

	raw, err := p.store.Get(ctx, Bucket, id)
	if err != nil {
		return registry.Failure("source not found: " + id)
	}

	var src Source
	if err := sonic.Unmarshal(raw, &src); err != nil {
		return registry.Failure("source record corrupted: " + id)
	}
	return registry.Success(map[string]any{
		"id":         src.ID,
		"url":        src.URL,
		"title":      src.Title,
		"content":    src.Content,
		"media_type": src.MediaType,
		"saved_at":   src.SavedAt,
	})
}

func (p *Provider) delete(ctx context.Context, params map[string]any) (*registry.Result, error) {
	id, ok := params["id"].(string)
	if !ok || id == "" {
		return registry.Failure("id parameter required")
	}
	if p.store == nil {
		return registry.Failure("source storage unavailable")
	}

	if err := p.store.Delete(ctx, Bucket, id); err != nil {
		return registry.Failure(fmt.Sprintf("delete failed: %v", err))
	}

	p.logger.Info("source deleted", zap.String("id", id))
	return registry.Success(map[string]any{"deleted": id})
}

// extractTitle pulls the document title out of fetched HTML. Non-HTML or
// title-less content yields the empty string.
func extractTitle(body []byte) string {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var title string
	var walk func(n *html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(root)
	return title
}

// detectCharset detects the charset of fetched bytes, defaulting to utf-8.
func detectCharset(data []byte) string {
	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(data)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}
