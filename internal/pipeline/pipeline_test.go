package pipeline

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/nao1215/sitecrawler/internal/model"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, sm *model.SiteMap) error
	callCount int
}

// Do implements Step.Do.
func (m *mockStep) Do(ctx context.Context, sm *model.SiteMap) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, sm)
	}
	return nil
}

// Name implements Step.Name.
func (m *mockStep) Name() string {
	return m.name
}

func testSiteMap() *model.SiteMap {
	return &model.SiteMap{
		RootURL: "https://example.com/",
		Domain:  "example.com",
		State:   "finished",
		Pages: map[model.NormalizedURL]*model.PageRecord{
			"https://example.com/": {URL: "https://example.com/", StatusCode: 200},
		},
		Structure: map[model.NormalizedURL][]model.NormalizedURL{},
		Resources: map[model.ResourceCategory][]string{
			model.CategoryImages: {"https://example.com/logo.png"},
		},
		Statistics: model.CrawlStatistics{PagesCrawled: 1, FilesFound: 1},
	}
}

// TestPipelineNew tests the Pipeline constructor.
func TestPipelineNew(t *testing.T) {
	t.Parallel()

	t.Run("creates pipeline with default settings", func(t *testing.T) {
		t.Parallel()

		p := New()
		if p.StepCount() != 0 {
			t.Errorf("expected 0 steps, got %d", p.StepCount())
		}
		if p.continueOnError {
			t.Error("expected continueOnError to default to false")
		}
	})

	t.Run("applies WithContinueOnError option", func(t *testing.T) {
		t.Parallel()

		p := New(WithContinueOnError(true))
		if !p.continueOnError {
			t.Error("expected continueOnError to be true")
		}
	})
}

// TestPipelineAddStep tests adding steps to the pipeline.
func TestPipelineAddStep(t *testing.T) {
	t.Parallel()

	p := New()
	p.AddStep(&mockStep{name: "one"})
	p.AddSteps(&mockStep{name: "two"}, &mockStep{name: "three"})

	if p.StepCount() != 3 {
		t.Errorf("expected 3 steps, got %d", p.StepCount())
	}
	if got := p.StepNames(); !slices.Equal(got, []string{"one", "two", "three"}) {
		t.Errorf("unexpected step order %v", got)
	}
}

// TestPipelineExecute tests step execution.
func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("runs steps in order", func(t *testing.T) {
		t.Parallel()

		var order []string
		record := func(name string) *mockStep {
			return &mockStep{name: name, doFunc: func(context.Context, *model.SiteMap) error {
				order = append(order, name)
				return nil
			}}
		}

		p := New()
		p.AddSteps(record("a"), record("b"), record("c"))
		if err := p.Execute(context.Background(), testSiteMap()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(order, []string{"a", "b", "c"}) {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		errBoom := errors.New("boom")
		failing := &mockStep{name: "failing", doFunc: func(context.Context, *model.SiteMap) error { return errBoom }}
		after := &mockStep{name: "after"}

		p := New()
		p.AddSteps(failing, after)
		err := p.Execute(context.Background(), testSiteMap())
		if !errors.Is(err, errBoom) {
			t.Fatalf("expected boom, got %v", err)
		}
		if after.callCount != 0 {
			t.Error("steps after a failure should not run")
		}
	})

	t.Run("continues on error when configured", func(t *testing.T) {
		t.Parallel()

		errOne := errors.New("one")
		errTwo := errors.New("two")
		p := New(WithContinueOnError(true))
		middle := &mockStep{name: "middle"}
		p.AddSteps(
			&mockStep{name: "first", doFunc: func(context.Context, *model.SiteMap) error { return errOne }},
			middle,
			&mockStep{name: "last", doFunc: func(context.Context, *model.SiteMap) error { return errTwo }},
		)

		err := p.Execute(context.Background(), testSiteMap())
		if !errors.Is(err, errOne) || !errors.Is(err, errTwo) {
			t.Fatalf("expected both errors, got %v", err)
		}
		if middle.callCount != 1 {
			t.Error("expected middle step to run")
		}
	})

	t.Run("respects cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		step := &mockStep{name: "never"}
		p := New()
		p.AddStep(step)
		if err := p.Execute(ctx, testSiteMap()); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if step.callCount != 0 {
			t.Error("step should not run after cancellation")
		}
	})
}
