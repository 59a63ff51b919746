package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/stitchworks/atelier/internal/core/domain"
	"github.com/stitchworks/atelier/internal/core/prompt"
)

type fakeJobRepo struct {
	mu       sync.Mutex
	jobs     map[string]*domain.ExtractionJob
	results  map[string]domain.ExtractionResult
	statuses []domain.JobStatus

	createErr error
	saveErr   error
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{
		jobs:    make(map[string]*domain.ExtractionJob),
		results: make(map[string]domain.ExtractionResult),
	}
}

func (f *fakeJobRepo) CreateJob(_ context.Context, job *domain.ExtractionJob) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *job
	f.jobs[job.ID] = &copied
	return nil
}

func (f *fakeJobRepo) GetJob(_ context.Context, id string) (*domain.ExtractionJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrJobNotFound, "fetch job", fmt.Errorf("id %s", id))
	}
	copied := *job
	return &copied, nil
}

func (f *fakeJobRepo) UpdateJobStatus(_ context.Context, id string, status domain.JobStatus, errMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return domain.WrapError(domain.ErrJobNotFound, "update job status", fmt.Errorf("id %s", id))
	}
	job.Status = status
	job.Error = errMessage
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeJobRepo) SaveJobResult(_ context.Context, id string, result domain.ExtractionResult) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[id] = result
	return nil
}

func (f *fakeJobRepo) GetJobResult(_ context.Context, id string) (*domain.ExtractionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result, ok := f.results[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrJobNotFound, "fetch job result", fmt.Errorf("id %s", id))
	}
	return &result, nil
}

type fakeQueue struct {
	published  []string
	publishErr error
}

func (f *fakeQueue) PublishJobQueued(_ context.Context, jobID string) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, jobID)
	return nil
}

func (f *fakeQueue) SubscribeJobQueued(context.Context, func(context.Context, string) error) error {
	return nil
}

// fakeGenerator replays queued responses; an entry with err set fails
// that attempt.
type fakeGenerator struct {
	mu        sync.Mutex
	queue     []fakeGeneration
	calls     int
	lastReq   prompt.Request
	onCall    func(attempt int)
	blockCtx  bool
	unblocked chan struct{}
}

type fakeGeneration struct {
	raw string
	err error
}

func (f *fakeGenerator) Generate(ctx context.Context, req prompt.Request) (string, error) {
	f.mu.Lock()
	f.calls++
	attempt := f.calls
	f.lastReq = req
	var next fakeGeneration
	if len(f.queue) > 0 {
		next = f.queue[0]
		f.queue = f.queue[1:]
	}
	onCall := f.onCall
	f.mu.Unlock()

	if onCall != nil {
		onCall(attempt)
	}
	if f.blockCtx {
		if f.unblocked != nil {
			close(f.unblocked)
			f.unblocked = nil
		}
		<-ctx.Done()
		return "", ctx.Err()
	}
	if next.err != nil {
		return "", next.err
	}
	return next.raw, nil
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// gatedGenerator hands out one scripted call at a time; each call
// signals arrival on started and blocks until the test closes release,
// so the test controls the exact return order of overlapping calls.
type gatedGenerator struct {
	mu    sync.Mutex
	queue []*gatedCall
	calls int
}

type gatedCall struct {
	started chan struct{}
	release chan struct{}
	raw     string
}

func newGatedCall(raw string) *gatedCall {
	return &gatedCall{
		started: make(chan struct{}),
		release: make(chan struct{}),
		raw:     raw,
	}
}

func (g *gatedGenerator) Generate(ctx context.Context, _ prompt.Request) (string, error) {
	g.mu.Lock()
	g.calls++
	if len(g.queue) == 0 {
		g.mu.Unlock()
		return "", fmt.Errorf("unexpected generation call")
	}
	call := g.queue[0]
	g.queue = g.queue[1:]
	g.mu.Unlock()

	close(call.started)
	<-call.release
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return call.raw, nil
}

func (g *gatedGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fakeRecordStore struct {
	mu        sync.Mutex
	items     []domain.OrderItemRecord
	research  []domain.ResearchStorageRecord
	createErr error
}

func (f *fakeRecordStore) CreateOrderItem(_ context.Context, record domain.OrderItemRecord) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, record)
	return fmt.Sprintf("item-%d", len(f.items)), nil
}

func (f *fakeRecordStore) GetOrderItem(_ context.Context, id string) (domain.OrderItemRecord, error) {
	return domain.OrderItemRecord{}, domain.WrapError(domain.ErrRecordNotFound, "fetch order item", fmt.Errorf("id %s", id))
}

func (f *fakeRecordStore) DeleteOrderItem(context.Context, string) error { return nil }

func (f *fakeRecordStore) CreateResearch(_ context.Context, record domain.ResearchStorageRecord) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.research = append(f.research, record)
	return fmt.Sprintf("research-%d", len(f.research)), nil
}

func (f *fakeRecordStore) GetResearch(_ context.Context, id string) (domain.ResearchStorageRecord, error) {
	return domain.ResearchStorageRecord{}, domain.WrapError(domain.ErrRecordNotFound, "fetch research", fmt.Errorf("id %s", id))
}

func (f *fakeRecordStore) DeleteResearch(context.Context, string) error { return nil }

type fakeExporter struct {
	exported [][]domain.ParsedItem
}

func (f *fakeExporter) Export(items []domain.ParsedItem) ([]byte, error) {
	f.exported = append(f.exported, items)
	return []byte("workbook"), nil
}
