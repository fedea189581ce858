package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/SquizAI/recipies01/internal/fetch"
	"github.com/SquizAI/recipies01/internal/model"
)

// --- Fetcher Mock ---

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) (*fetch.Page, error) {
	args := m.Called(ctx, url)
	if err := ctx.Err(); err != nil && args.Error(1) == nil {
		return nil, err
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fetch.Page), args.Error(1)
}

// blockFor makes a call wait d or until the call's context ends.
func blockFor(d time.Duration) func(mock.Arguments) {
	return func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		select {
		case <-time.After(d):
		case <-ctx.Done():
		}
	}
}

func browserPage() *fetch.Page {
	return &fetch.Page{
		URL:      "https://www.instagram.com/p/abc/",
		HTML:     "<html></html>",
		Mode:     fetch.ModeDOM,
		Strategy: "browser",
	}
}

// --- Extractor Mock ---

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) Extract(p *fetch.Page) (*model.RawContent, error) {
	args := m.Called(p)
	raw, _ := args.Get(0).(*model.RawContent)
	if raw == nil {
		return nil, args.Error(1)
	}
	cp := *raw
	return &cp, args.Error(1)
}

// --- Augmenter Mock ---

type mockAugmenter struct {
	mock.Mock
}

func (m *mockAugmenter) Augment(ctx context.Context, raw model.RawContent) model.AugmentedContent {
	args := m.Called(ctx, raw)
	tr, _ := args.Get(0).(*string)
	return model.AugmentedContent{RawContent: raw, Transcription: tr}
}

// --- Parser Mock ---

type mockParser struct {
	mock.Mock
}

func (m *mockParser) Parse(ctx context.Context, c model.AugmentedContent) (*model.Recipe, error) {
	args := m.Called(ctx, c)
	if fn, ok := args.Get(0).(func(model.AugmentedContent) *model.Recipe); ok {
		return fn(c), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Recipe), args.Error(1)
}

func (m *mockParser) lastSeen() model.AugmentedContent {
	calls := m.Calls
	return calls[len(calls)-1].Arguments.Get(1).(model.AugmentedContent)
}

// pancakes builds the recipe the parser mock returns for c.
func pancakes(c model.AugmentedContent) *model.Recipe {
	return &model.Recipe{
		Title:       "Pancakes",
		Ingredients: []model.Ingredient{{Name: "eggs", Amount: 2}},
		Steps: []model.CookingStep{
			{Order: 1, Instruction: "mix"},
			{Order: 2, Instruction: "cook"},
		},
		SourceURL:          c.SourceURL,
		VideoTranscription: c.Transcription,
	}
}

// --- In-memory cache and run ledger ---

type memCache struct {
	mu      sync.Mutex
	data    map[string]*model.Recipe
	getErr  error
	putErr  error
	putKeys []string
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string]*model.Recipe)}
}

func (m *memCache) Get(_ context.Context, key string) (*model.Recipe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.data[key], nil
}

func (m *memCache) Put(_ context.Context, key string, r *model.Recipe) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putKeys = append(m.putKeys, key)
	if m.putErr != nil {
		return m.putErr
	}
	if _, ok := m.data[key]; !ok {
		m.data[key] = r
	}
	return nil
}

func (m *memCache) puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.putKeys)
}

func (m *memCache) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

type memLedger struct {
	mu       sync.Mutex
	created  int
	outcomes map[string]model.RunOutcome
	failOpen bool
}

func newMemLedger() *memLedger {
	return &memLedger{outcomes: make(map[string]model.RunOutcome)}
}

func (l *memLedger) CreateRun(_ context.Context, sourceURL, _ string) (*model.Run, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failOpen {
		return nil, errors.New("ledger down")
	}
	l.created++
	return &model.Run{ID: "run-" + string(rune('0'+l.created)), SourceURL: sourceURL}, nil
}

func (l *memLedger) FinishRun(_ context.Context, id string, out model.RunOutcome) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outcomes[id] = out
	return nil
}

func (l *memLedger) outcome(id string) (model.RunOutcome, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.outcomes[id]
	return o, ok
}

func (l *memLedger) runsCreated() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.created
}
