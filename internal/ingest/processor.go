// Package ingest turns files, URLs and raw text into knowledge-base chunks.
package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/net/html"

	parleyErrors "github.com/parley-oss/parley/internal/errors"
	"github.com/parley-oss/parley/internal/knowledge"
	"github.com/parley-oss/parley/internal/telemetry"
)

// MaxFileSize caps ingestable inputs at 50MB.
const MaxFileSize = 50 * 1024 * 1024

// Result describes one processed document, split and ready to store.
type Result struct {
	Source   string
	Type     string // "text" or "html"
	Chunks   []string
	Metadata map[string]any
}

// Processor splits documents into overlapping chunks for the knowledge base.
type Processor struct {
	chunkSize    int
	chunkOverlap int
	client       *http.Client
	logger       *telemetry.Logger
}

// NewProcessor creates a processor with the given chunking parameters.
func NewProcessor(chunkSize, chunkOverlap int, logger *telemetry.Logger) *Processor {
	if chunkSize <= 0 {
		chunkSize = knowledge.DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = knowledge.DefaultChunkOverlap
	}
	if logger == nil {
		logger = telemetry.NewLogger(false)
	}
	return &Processor{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		client:       &http.Client{Timeout: 30 * time.Second},
		logger:       logger,
	}
}

// ProcessText splits raw text into chunks.
func (p *Processor) ProcessText(content, source string) *Result {
	return p.buildResult(content, source, "text", nil)
}

// ProcessFile reads and splits a local file. Supported extensions are .txt,
// .md, .html and .htm; anything else fails with UNSUPPORTED_FORMAT.
func (p *Processor) ProcessFile(path, source string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable,
			fmt.Sprintf("cannot read %s", path), err)
	}
	if info.Size() > MaxFileSize {
		return nil, parleyErrors.New(parleyErrors.CodeUnsupportedFormat,
			fmt.Sprintf("file too large: %d bytes (max %d)", info.Size(), MaxFileSize))
	}

	ext := strings.ToLower(filepath.Ext(path))
	if source == "" {
		source = filepath.Base(path)
	}

	switch ext {
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable,
				fmt.Sprintf("cannot read %s", path), err)
		}
		p.logger.Debug("processing text file", "path", path, "bytes", len(data))
		return p.ProcessText(string(data), source), nil
	case ".html", ".htm":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable,
				fmt.Sprintf("cannot read %s", path), err)
		}
		p.logger.Debug("processing html file", "path", path, "bytes", len(data))
		return p.processHTML(string(data), source), nil
	default:
		return nil, parleyErrors.New(parleyErrors.CodeUnsupportedFormat,
			fmt.Sprintf("unsupported file format %q", ext)).
			WithSuggestion("Supported formats: .txt, .md, .html, .htm")
	}
}

// ProcessURL fetches a URL and splits its content. HTML responses are
// stripped to text first; everything else is treated as plain text.
func (p *Processor) ProcessURL(ctx context.Context, url, source string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable,
			fmt.Sprintf("invalid url %s", url), err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable,
			fmt.Sprintf("cannot fetch %s", url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parleyErrors.New(parleyErrors.CodeStoreUnavailable,
			fmt.Sprintf("fetch %s: HTTP %d", url, resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxFileSize+1))
	if err != nil {
		return nil, parleyErrors.Wrap(parleyErrors.CodeStoreUnavailable,
			fmt.Sprintf("cannot read body of %s", url), err)
	}
	if len(body) > MaxFileSize {
		return nil, parleyErrors.New(parleyErrors.CodeUnsupportedFormat,
			fmt.Sprintf("response too large: over %d bytes", MaxFileSize))
	}

	if source == "" {
		source = url
	}
	p.logger.Debug("processing url", "url", url, "bytes", len(body), "content_type", resp.Header.Get("Content-Type"))

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.Contains(contentType, "html") {
		return p.processHTML(string(body), source), nil
	}
	return p.ProcessText(string(body), source), nil
}

func (p *Processor) processHTML(htmlContent, source string) *Result {
	text, title := extractText(htmlContent)
	extra := map[string]any{}
	if title != "" {
		extra["title"] = title
	}
	return p.buildResult(text, source, "html", extra)
}

func (p *Processor) buildResult(content, source, docType string, extra map[string]any) *Result {
	chunks := knowledge.SplitText(content, p.chunkSize, p.chunkOverlap)

	metadata := map[string]any{
		"processed_at": time.Now().Format(time.RFC3339),
		"char_count":   len(content),
		"word_count":   len(strings.Fields(content)),
	}
	for k, v := range extra {
		metadata[k] = v
	}

	return &Result{
		Source:   source,
		Type:     docType,
		Chunks:   chunks,
		Metadata: metadata,
	}
}

// Store writes every chunk of a result into the knowledge base, tagging each
// with its position. It returns the IDs of the stored chunks.
func (p *Processor) Store(ctx context.Context, kb knowledge.Store, res *Result) ([]string, error) {
	ids := make([]string, 0, len(res.Chunks))
	for i, chunk := range res.Chunks {
		metadata := map[string]any{
			"chunk_index":  i,
			"total_chunks": len(res.Chunks),
			"type":         res.Type,
		}
		for k, v := range res.Metadata {
			metadata[k] = v
		}

		id, err := kb.Add(ctx, chunk, res.Source, metadata)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	p.logger.Info("document ingested", "source", res.Source, "chunks", len(ids))
	return ids, nil
}

// extractText strips tags from HTML, skipping script and style bodies, and
// returns the visible text plus the page title. Blank lines are collapsed.
func extractText(htmlContent string) (string, string) {
	tokenizer := html.NewTokenizer(strings.NewReader(htmlContent))

	var b strings.Builder
	var title string
	skipDepth := 0
	inTitle := false

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return collapseBlankLines(b.String()), title
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "script", "style":
				skipDepth++
			case "title":
				inTitle = true
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "script", "style":
				if skipDepth > 0 {
					skipDepth--
				}
			case "title":
				inTitle = false
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			text := string(tokenizer.Text())
			if inTitle {
				title = strings.TrimSpace(text)
				continue
			}
			b.WriteString(text)
		}
	}
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, "\n")
}
