package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spaceboy202105/chatbot-test/internal/adapter/llm"
	"github.com/spaceboy202105/chatbot-test/internal/domain"
)

// FakeAdapter is a scripted llm.ModelAdapter.
type FakeAdapter struct {
	Name string
	// Reply is returned by Generate.
	Reply string
	// Fragments are yielded by GenerateStream.
	Fragments []string
	// Err fails Generate and GenerateStream before any output.
	Err error
	// StreamErr is yielded after Fragments.
	StreamErr error
	// Delay is waited before each fragment and before Generate returns.
	Delay time.Duration
	// OnFragment runs before fragment i is yielded.
	OnFragment func(i int)

	mu       sync.Mutex
	requests []domain.NormalizedRequest
}

var _ llm.ModelAdapter = (*FakeAdapter)(nil)

// Generate returns Reply or Err.
func (f *FakeAdapter) Generate(ctx context.Context, req *domain.NormalizedRequest) (string, error) {
	f.record(req)
	if err := f.wait(ctx); err != nil {
		return "", &domain.AdapterError{Provider: f.provider(), Cause: err}
	}
	if f.Err != nil {
		return "", f.Err
	}
	return f.Reply, nil
}

// GenerateStream yields Fragments then StreamErr, honouring ctx between fragments.
func (f *FakeAdapter) GenerateStream(ctx context.Context, req *domain.NormalizedRequest) (llm.FragmentSeq, error) {
	f.record(req)
	if f.Err != nil {
		return nil, f.Err
	}
	return func(yield func(string, error) bool) {
		for i, fragment := range f.Fragments {
			if f.OnFragment != nil {
				f.OnFragment(i)
			}
			if err := f.wait(ctx); err != nil {
				yield("", &domain.AdapterError{Provider: f.provider(), Cause: err})
				return
			}
			if !yield(fragment, nil) {
				return
			}
		}
		if f.StreamErr != nil {
			yield("", f.StreamErr)
		}
	}, nil
}

// Describe reports the fake's name.
func (f *FakeAdapter) Describe() domain.AdapterInfo {
	return domain.AdapterInfo{Provider: f.provider()}
}

// Requests returns the requests received so far.
func (f *FakeAdapter) Requests() []domain.NormalizedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.NormalizedRequest(nil), f.requests...)
}

// LastRequest returns the most recent request.
func (f *FakeAdapter) LastRequest(t *testing.T) domain.NormalizedRequest {
	t.Helper()
	reqs := f.Requests()
	if len(reqs) == 0 {
		t.Fatalf("adapter %s received no requests", f.provider())
	}
	return reqs[len(reqs)-1]
}

func (f *FakeAdapter) record(req *domain.NormalizedRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *req
	cp.History = append([]domain.Turn(nil), req.History...)
	f.requests = append(f.requests, cp)
}

func (f *FakeAdapter) wait(ctx context.Context) error {
	if f.Delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(f.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (f *FakeAdapter) provider() string {
	if f.Name == "" {
		return "fake"
	}
	return f.Name
}

// NewRegistry registers each adapter under its key, adds models, and seals
// the registry.
func NewRegistry(t *testing.T, adapters map[string]llm.ModelAdapter, models ...domain.ModelInfo) *llm.Registry {
	t.Helper()
	registry := llm.NewRegistry()
	for key, adapter := range adapters {
		if err := registry.Register(key, adapter); err != nil {
			t.Fatalf("failed to register %s: %v", key, err)
		}
	}
	for _, model := range models {
		if err := registry.AddModel(model); err != nil {
			t.Fatalf("failed to add model %s: %v", model.ID, err)
		}
	}
	registry.Seal()
	return registry
}
