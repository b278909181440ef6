package plot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/openai/openai-go/v3"

	"plottheplot/pkg/gutenberg"
	"plottheplot/pkg/schema"
)

type stubSource struct {
	text    string
	meta    schema.Metadata
	textErr error
	metaErr error
}

func (s *stubSource) FetchText(context.Context, string) (string, error) {
	return s.text, s.textErr
}

func (s *stubSource) FetchMetadata(context.Context, string) (schema.Metadata, error) {
	return s.meta, s.metaErr
}

type stubRecorder struct {
	mu          sync.Mutex
	called      chan struct{}
	err         error
	bookID      string
	title       string
	userID      int64
	hadDeadline bool
}

func newStubRecorder(err error) *stubRecorder {
	return &stubRecorder{called: make(chan struct{}, 1), err: err}
}

func (r *stubRecorder) RecordSearch(ctx context.Context, userID int64, bookID, title string) error {
	r.mu.Lock()
	r.userID, r.bookID, r.title = userID, bookID, title
	_, r.hadDeadline = ctx.Deadline()
	r.mu.Unlock()
	r.called <- struct{}{}
	return r.err
}

// stageInferencer answers by system prompt and records the stage order.
type stageInferencer struct {
	mu     sync.Mutex
	stages []string
}

func (s *stageInferencer) Infer(_ context.Context, _ *openai.ChatCompletionNewParams, system, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.Contains(system, "literary analyst") {
		s.stages = append(s.stages, "validation")
		return `{"known_story": true, "issues": [], "notes": "fine", "score": 8}`, nil
	}
	s.stages = append(s.stages, "extraction")
	return aliceBobAnalysis, nil
}

func newTestPipeline(t *testing.T, source TextSource, recorder SearchRecorder) (*Pipeline, *stageInferencer) {
	t.Helper()
	origSleep := retrySleep
	retrySleep = func(time.Duration) {}
	t.Cleanup(func() { retrySleep = origSleep })

	inf := &stageInferencer{}
	return NewPipeline(source, NewAnalyzer(inf), recorder), inf
}

func TestRun_WithValidation(t *testing.T) {
	source := &stubSource{text: "Alice loves Bob.", meta: schema.Metadata{Title: "Test Story", Author: "Nobody"}}
	recorder := newStubRecorder(nil)
	pipeline, inf := newTestPipeline(t, source, recorder)

	result, err := pipeline.Run(context.Background(), Request{BookID: "1342", Validate: true, UserID: 7})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Title != "Test Story" {
		t.Errorf("Unexpected title: %q", result.Title)
	}
	if result.Validation == nil || result.Validation.Score != 8 {
		t.Errorf("Expected validation in result, got %+v", result.Validation)
	}

	// Extraction must complete before validation starts.
	if len(inf.stages) != 2 || inf.stages[0] != "extraction" || inf.stages[1] != "validation" {
		t.Errorf("Unexpected stage order: %v", inf.stages)
	}

	select {
	case <-recorder.called:
	case <-time.After(time.Second):
		t.Fatal("Search was never recorded")
	}
	if recorder.bookID != "1342" || recorder.title != "Test Story" || recorder.userID != 7 {
		t.Errorf("Unexpected search record: %q %q %d", recorder.bookID, recorder.title, recorder.userID)
	}
}

func TestRun_WithoutValidation(t *testing.T) {
	source := &stubSource{text: "Alice loves Bob.", meta: schema.Metadata{Title: "Test Story"}}
	pipeline, inf := newTestPipeline(t, source, newStubRecorder(nil))

	result, err := pipeline.Run(context.Background(), Request{BookID: "1342"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Validation != nil {
		t.Error("Validation should be absent when not requested")
	}
	if len(inf.stages) != 1 || inf.stages[0] != "extraction" {
		t.Errorf("Unexpected stages: %v", inf.stages)
	}
}

func TestRun_FetchFailureShortCircuits(t *testing.T) {
	source := &stubSource{textErr: gutenberg.ErrSourceUnavailable, meta: schema.Metadata{Title: "T"}}
	pipeline, inf := newTestPipeline(t, source, newStubRecorder(nil))

	_, err := pipeline.Run(context.Background(), Request{BookID: "1342"})
	if !errors.Is(err, gutenberg.ErrSourceUnavailable) {
		t.Fatalf("Expected source error, got %v", err)
	}
	if len(inf.stages) != 0 {
		t.Errorf("Expected no inference after fetch failure, got %v", inf.stages)
	}
}

func TestRun_MetadataFailureShortCircuits(t *testing.T) {
	source := &stubSource{text: "some text", metaErr: gutenberg.ErrMetadataUnavailable}
	pipeline, inf := newTestPipeline(t, source, newStubRecorder(nil))

	_, err := pipeline.Run(context.Background(), Request{BookID: "1342"})
	if !errors.Is(err, gutenberg.ErrMetadataUnavailable) {
		t.Fatalf("Expected metadata error, got %v", err)
	}
	if len(inf.stages) != 0 {
		t.Errorf("Expected no inference after metadata failure, got %v", inf.stages)
	}
}

func TestRun_RecorderFailureDoesNotFailResponse(t *testing.T) {
	source := &stubSource{text: "Alice loves Bob.", meta: schema.Metadata{Title: "T"}}
	recorder := newStubRecorder(errors.New("disk full"))
	pipeline, _ := newTestPipeline(t, source, recorder)

	result, err := pipeline.Run(context.Background(), Request{BookID: "1342"})
	if err != nil {
		t.Fatalf("Recorder failure must not fail the run: %v", err)
	}
	if result.Analysis == nil {
		t.Error("Expected analysis in result")
	}

	select {
	case <-recorder.called:
	case <-time.After(time.Second):
		t.Fatal("Recorder was never invoked")
	}
}

func TestRun_RecorderContextHasDeadline(t *testing.T) {
	source := &stubSource{text: "Alice loves Bob.", meta: schema.Metadata{Title: "T"}}
	recorder := newStubRecorder(nil)
	pipeline, _ := newTestPipeline(t, source, recorder)

	if _, err := pipeline.Run(context.Background(), Request{BookID: "1342"}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	select {
	case <-recorder.called:
	case <-time.After(time.Second):
		t.Fatal("Recorder was never invoked")
	}
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if !recorder.hadDeadline {
		t.Error("Expected the record write to carry a deadline")
	}
}

func TestRun_NilRecorder(t *testing.T) {
	source := &stubSource{text: "Alice loves Bob.", meta: schema.Metadata{Title: "T"}}
	pipeline, _ := newTestPipeline(t, source, nil)

	if _, err := pipeline.Run(context.Background(), Request{BookID: "1342"}); err != nil {
		t.Fatalf("Expected no error with nil recorder, got %v", err)
	}
}
