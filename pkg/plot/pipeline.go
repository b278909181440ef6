package plot

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"plottheplot/pkg/schema"
)

// TextSource supplies story texts and bibliographic metadata.
type TextSource interface {
	FetchText(ctx context.Context, bookID string) (string, error)
	FetchMetadata(ctx context.Context, bookID string) (schema.Metadata, error)
}

// SearchRecorder persists search analytics. Recording is best-effort; the
// pipeline never fails a response over it.
type SearchRecorder interface {
	RecordSearch(ctx context.Context, userID int64, bookID, title string) error
}

// recordTimeout bounds the async search write.
const recordTimeout = 10 * time.Second

// Request describes one analysis run.
type Request struct {
	BookID   string
	Validate bool
	UserID   int64
}

// Result is what one analysis run produces. Validation is nil unless the
// request asked for it.
type Result struct {
	Title      string
	Analysis   *schema.Analysis
	Validation *schema.Validation
}

// Pipeline sequences fetch, extraction, optional validation, and search
// recording for one request. It holds no per-request state.
type Pipeline struct {
	source   TextSource
	analyzer *Analyzer
	recorder SearchRecorder
}

func NewPipeline(source TextSource, analyzer *Analyzer, recorder SearchRecorder) *Pipeline {
	return &Pipeline{
		source:   source,
		analyzer: analyzer,
		recorder: recorder,
	}
}

// Run executes one analysis. Metadata and text are fetched concurrently; both
// must land before extraction starts. Validation always follows a completed
// extraction.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	var (
		text string
		meta schema.Metadata
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		text, err = p.source.FetchText(gctx, req.BookID)
		return err
	})
	g.Go(func() error {
		var err error
		meta, err = p.source.FetchMetadata(gctx, req.BookID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Info("starting analysis", "book_id", req.BookID, "title", meta.Title, "chars", len(text), "validate", req.Validate)

	analysis, err := p.analyzer.Extract(ctx, text)
	if err != nil {
		return nil, err
	}

	result := &Result{Title: meta.Title, Analysis: analysis}
	if req.Validate {
		validation, err := p.analyzer.Validate(ctx, text, analysis, meta)
		if err != nil {
			return nil, err
		}
		result.Validation = validation
	}

	p.recordSearch(req, meta.Title)

	log.Info("analysis complete", "book_id", req.BookID, "characters", len(analysis.Characters), "relations", len(analysis.Relations))
	return result, nil
}

// recordSearch writes the search record off the request path. The write is
// detached from the request context so it survives the response, but carries
// its own deadline. Failures are logged and dropped.
func (p *Pipeline) recordSearch(req Request, title string) {
	if p.recorder == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := p.recorder.RecordSearch(ctx, req.UserID, req.BookID, title); err != nil {
			log.Warn("failed to record search", "book_id", req.BookID, "error", err)
		}
	}()
}
