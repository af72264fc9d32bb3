package etl

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/mailrecall/ai/mock"
	"github.com/poiesic/mailrecall/core"
	"github.com/poiesic/mailrecall/storage"
	"github.com/poiesic/mailrecall/storage/badger"
	storagemock "github.com/poiesic/mailrecall/storage/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubFetcher returns fixed records or an error.
type stubFetcher struct {
	records []json.RawMessage
	err     error

	mu    sync.Mutex
	calls int
	max   int
	page  int
}

func (f *stubFetcher) Fetch(ctx context.Context, accountRef string, maxCount, pageSize int) ([]json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.max, f.page = maxCount, pageSize
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

type recordingMetrics struct {
	mu            sync.Mutex
	runs          []core.JobStatus
	records       map[string]int
	indexFailures int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{records: map[string]int{}}
}

func (m *recordingMetrics) ObserveRun(status core.JobStatus, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, status)
}

func (m *recordingMetrics) AddRecords(stage string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[stage] += n
}

func (m *recordingMetrics) IncIndexFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexFailures++
}

type publishedEvent struct {
	key   string
	event JobEvent
}

type recordingPublisher struct {
	err    error
	events []publishedEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	p.events = append(p.events, publishedEvent{key: routingKey, event: payload.(JobEvent)})
	return p.err
}

type stubLocker struct {
	held     bool
	err      error
	acquired []string
	released []string
}

func (l *stubLocker) Acquire(ctx context.Context, key string) (string, bool, error) {
	if l.err != nil {
		return "", false, l.err
	}
	if l.held {
		return "", false, nil
	}
	l.acquired = append(l.acquired, key)
	return "token-1", true, nil
}

func (l *stubLocker) Release(ctx context.Context, key, token string) error {
	l.released = append(l.released, key+"/"+token)
	return nil
}

// threeRecords holds two valid messages and one without a sender.
var threeRecords = raw(
	`{"id": "m1", "thread_id": "t1", "subject": "Invoice", "body": "Please pay", "from": [{"name": "Acme", "email": "billing@acme.com"}], "to": [{"email": "me@example.com"}], "date": 1700000000}`,
	`{"id": "m2", "subject": "Lunch", "from": [{"name": "Friend", "email": "friend@example.com"}], "date": 1700000100}`,
	`{"id": "m3", "subject": "No sender"}`,
)

type harness struct {
	store    *storagemock.RecordStore
	index    *badger.Index
	embedder *mock.MockEmbedder
	fetcher  *stubFetcher
}

func newHarness(t *testing.T, records []json.RawMessage) *harness {
	t.Helper()
	embedder := mock.NewMockEmbedder()
	index := badger.NewMemoryIndex(embedder)
	require.NoError(t, index.Init(context.Background()))
	t.Cleanup(func() { index.Close() })

	return &harness{
		store:    storagemock.NewRecordStore(),
		index:    index,
		embedder: embedder,
		fetcher:  &stubFetcher{records: records},
	}
}

func (h *harness) pipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	p, err := NewPipeline(h.fetcher, h.store, h.index, opts...)
	require.NoError(t, err)
	return p
}

func (h *harness) counts(t *testing.T) (int, int) {
	t.Helper()
	ctx := context.Background()
	stored, err := h.store.CountEmails(ctx)
	require.NoError(t, err)
	indexed, err := h.index.Count(ctx)
	require.NoError(t, err)
	return stored, indexed
}

func TestNewPipeline_RequiresDependencies(t *testing.T) {
	store := storagemock.NewRecordStore()
	index := badger.NewMemoryIndex(mock.NewMockEmbedder())
	fetcher := &stubFetcher{}

	_, err := NewPipeline(nil, store, index)
	assert.ErrorIs(t, err, ErrFetcherRequired)

	_, err = NewPipeline(fetcher, nil, index)
	assert.ErrorIs(t, err, ErrRecordStoreRequired)

	_, err = NewPipeline(fetcher, store, nil)
	assert.ErrorIs(t, err, ErrSearchIndexRequired)

	_, err = NewPipeline(fetcher, store, index, WithClock(nil))
	assert.Error(t, err)
}

func TestRun_LoadsBothStores(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, threeRecords)
	metrics := newRecordingMetrics()
	p := h.pipeline(t, WithMetrics(metrics), WithFetchLimits(7, 3))

	result, err := p.Run(ctx, "grant-1")
	require.NoError(t, err)

	assert.Equal(t, 3, result.Fetched)
	assert.Equal(t, 2, result.EmailsProcessed)
	assert.Equal(t, 2, result.Stored)
	assert.Equal(t, 2, result.Indexed)
	assert.NoError(t, result.IndexErr)
	assert.Equal(t, 7, h.fetcher.max)
	assert.Equal(t, 3, h.fetcher.page)

	stored, indexed := h.counts(t)
	assert.Equal(t, 2, stored)
	assert.Equal(t, 2, indexed)

	job, err := h.store.GetJob(ctx, result.JobID)
	require.NoError(t, err)
	assert.Equal(t, core.JobTypeEmailExtraction, job.JobType)
	assert.Equal(t, core.JobStatusCompleted, job.Status)
	assert.Equal(t, 2, job.RecordsProcessed)
	assert.Nil(t, job.ErrorMessage)
	assert.NotNil(t, job.CompletedAt)

	email, err := h.store.GetEmail(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, email)
	assert.Equal(t, "billing@acme.com", email.FromEmail)
	assert.NotNil(t, email.ProcessedAt)

	assert.Equal(t, []core.JobStatus{core.JobStatusCompleted}, metrics.runs)
	assert.Equal(t, 3, metrics.records[StageFetched])
	assert.Equal(t, 2, metrics.records[StageTransformed])
	assert.Equal(t, 2, metrics.records[StageIndexed])
}

func TestRun_RerunConverges(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, threeRecords)
	p := h.pipeline(t)

	_, err := p.Run(ctx, "grant-1")
	require.NoError(t, err)
	storedBefore, indexedBefore := h.counts(t)

	second, err := p.Run(ctx, "grant-1")
	require.NoError(t, err)
	assert.Equal(t, 2, second.EmailsProcessed)
	assert.Zero(t, second.Stored)
	assert.Zero(t, second.Indexed)

	storedAfter, indexedAfter := h.counts(t)
	assert.Equal(t, storedBefore, storedAfter)
	assert.Equal(t, indexedBefore, indexedAfter)

	jobs := h.store.Jobs()
	require.Len(t, jobs, 2)
	for _, job := range jobs {
		assert.Equal(t, core.JobStatusCompleted, job.Status)
		assert.Equal(t, 2, job.RecordsProcessed)
	}
}

func TestRun_IndexFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, threeRecords)
	metrics := newRecordingMetrics()
	p := h.pipeline(t, WithMetrics(metrics))

	h.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("embedding service unavailable")
	}

	result, err := p.Run(ctx, "grant-1")
	require.NoError(t, err)
	require.Error(t, result.IndexErr)
	assert.ErrorIs(t, result.IndexErr, ErrLoadIndex)
	assert.Zero(t, result.Indexed)
	assert.Equal(t, 1, metrics.indexFailures)

	stored, indexed := h.counts(t)
	assert.Equal(t, 2, stored)
	assert.Zero(t, indexed)

	job, err := h.store.GetJob(ctx, result.JobID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusCompleted, job.Status)

	t.Run("next run fills the index", func(t *testing.T) {
		h.embedder.Reset()

		result, err := p.Run(ctx, "grant-1")
		require.NoError(t, err)
		assert.NoError(t, result.IndexErr)
		assert.Zero(t, result.Stored)
		assert.Equal(t, 2, result.Indexed)

		stored, indexed := h.counts(t)
		assert.Equal(t, stored, indexed)
	})
}

func TestRun_FetchFailureFailsJob(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.fetcher.err = errors.New("provider returned 401")
	publisher := &recordingPublisher{}
	p := h.pipeline(t, WithEventPublisher(publisher))

	result, err := p.Run(ctx, "grant-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExtract)
	require.NotNil(t, result)

	job, err := h.store.GetJob(ctx, result.JobID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Contains(t, *job.ErrorMessage, "provider returned 401")
	assert.Zero(t, job.RecordsProcessed)

	stored, indexed := h.counts(t)
	assert.Zero(t, stored)
	assert.Zero(t, indexed)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, EventJobFailed, publisher.events[0].key)
	assert.Equal(t, core.JobStatusFailed, publisher.events[0].event.Status)
	assert.Equal(t, "grant-1", publisher.events[0].event.AccountRef)
}

func TestRun_RecordStoreFailureSkipsIndex(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, threeRecords)
	h.store.SaveEmailsErr = errors.New("connection reset")
	p := h.pipeline(t)

	result, err := p.Run(ctx, "grant-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLoadRecords)

	job, err := h.store.GetJob(ctx, result.JobID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusFailed, job.Status)

	_, indexed := h.counts(t)
	assert.Zero(t, indexed)
}

func TestRun_FailureRecordingErrorIsJoined(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	fetchErr := errors.New("timeout")
	h.fetcher.err = fetchErr
	recordErr := errors.New("database gone")
	h.store.FinishJobErr = recordErr
	p := h.pipeline(t)

	_, err := p.Run(ctx, "grant-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, fetchErr)
	assert.ErrorIs(t, err, recordErr)
}

func TestRun_StartJobFailure(t *testing.T) {
	h := newHarness(t, threeRecords)
	h.store.StartJobErr = errors.New("read-only")
	p := h.pipeline(t)

	result, err := p.Run(context.Background(), "grant-1")
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Zero(t, h.fetcher.calls)
}

func TestRun_EmptyFetchCompletes(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	p := h.pipeline(t)

	result, err := p.Run(ctx, "grant-1")
	require.NoError(t, err)
	assert.Zero(t, result.EmailsProcessed)

	job, err := h.store.GetJob(ctx, result.JobID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusCompleted, job.Status)
	assert.Zero(t, h.embedder.CallCount())
}

func TestRun_PublishesCompletion(t *testing.T) {
	h := newHarness(t, threeRecords)
	publisher := &recordingPublisher{err: errors.New("broker down")}
	p := h.pipeline(t, WithEventPublisher(publisher))

	result, err := p.Run(context.Background(), "grant-1")
	require.NoError(t, err, "publish failures are logged only")

	require.Len(t, publisher.events, 1)
	assert.Equal(t, EventJobCompleted, publisher.events[0].key)
	assert.Equal(t, JobEvent{
		JobID:            result.JobID,
		AccountRef:       "grant-1",
		Status:           core.JobStatusCompleted,
		RecordsProcessed: 2,
	}, publisher.events[0].event)
}

func TestRun_Lock(t *testing.T) {
	ctx := context.Background()

	t.Run("held lock rejects the run", func(t *testing.T) {
		h := newHarness(t, threeRecords)
		p := h.pipeline(t, WithRunLock(&stubLocker{held: true}))

		_, err := p.Run(ctx, "grant-1")
		assert.ErrorIs(t, err, ErrRunInProgress)
		assert.Empty(t, h.store.Jobs())
		assert.Zero(t, h.fetcher.calls)
	})

	t.Run("acquired lock is released", func(t *testing.T) {
		h := newHarness(t, threeRecords)
		locker := &stubLocker{}
		p := h.pipeline(t, WithRunLock(locker))

		_, err := p.Run(ctx, "grant-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"mailrecall:etl:grant-1"}, locker.acquired)
		assert.Equal(t, []string{"mailrecall:etl:grant-1/token-1"}, locker.released)
	})

	t.Run("lock backend failure proceeds", func(t *testing.T) {
		h := newHarness(t, threeRecords)
		p := h.pipeline(t, WithRunLock(&stubLocker{err: errors.New("redis down")}))

		result, err := p.Run(ctx, "grant-1")
		require.NoError(t, err)
		assert.Equal(t, 2, result.EmailsProcessed)
	})
}

func TestRun_CountsAreMonotonic(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, threeRecords[:1])
	p := h.pipeline(t)

	_, err := p.Run(ctx, "grant-1")
	require.NoError(t, err)
	stored1, indexed1 := h.counts(t)

	h.fetcher.records = threeRecords
	_, err = p.Run(ctx, "grant-1")
	require.NoError(t, err)
	stored2, indexed2 := h.counts(t)

	assert.GreaterOrEqual(t, stored2, stored1)
	assert.GreaterOrEqual(t, indexed2, indexed1)
	assert.Equal(t, 2, stored2)
	assert.LessOrEqual(t, indexed2, stored2)
}

func TestRun_DuplicateIDsIndexedOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, raw(
		`{"id": "m1", "subject": "Invoice", "from": [{"email": "billing@acme.com"}]}`,
		`{"id": "m1", "subject": "Invoice", "from": [{"email": "billing@acme.com"}]}`,
	))

	var (
		mu       sync.Mutex
		embedded []string
	)
	h.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		mu.Lock()
		defer mu.Unlock()
		embedded = append(embedded, texts...)
		vectors := make([][]float32, len(texts))
		for i := range texts {
			vectors[i] = []float32{1, 0, 0}
		}
		return vectors, nil
	}
	metrics := newRecordingMetrics()

	result, err := h.pipeline(t, WithMetrics(metrics)).Run(ctx, "grant-1")
	require.NoError(t, err)

	assert.Equal(t, 2, result.EmailsProcessed)
	assert.Equal(t, 1, result.Stored)
	assert.Equal(t, 1, result.Indexed)
	assert.Len(t, embedded, 1)
	assert.Equal(t, 1, metrics.records[StageIndexed])

	stored, indexed := h.counts(t)
	assert.Equal(t, 1, stored)
	assert.Equal(t, 1, indexed)
}

// cancellingIndex cancels the run context once documents are added.
type cancellingIndex struct {
	*badger.Index
	cancel context.CancelFunc
}

func (ix *cancellingIndex) AddBatch(ctx context.Context, docs []storage.Document) error {
	err := ix.Index.AddBatch(ctx, docs)
	ix.cancel()
	return err
}

// ctxStore rejects job transitions on a cancelled context, as a database would.
type ctxStore struct {
	*storagemock.RecordStore
}

func (s *ctxStore) CompleteJob(ctx context.Context, id int64, recordsProcessed int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.RecordStore.CompleteJob(ctx, id, recordsProcessed)
}

func (s *ctxStore) FailJob(ctx context.Context, id int64, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.RecordStore.FailJob(ctx, id, message)
}

func TestRun_CancelAfterLoadStillCompletes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newHarness(t, threeRecords)
	store := &ctxStore{RecordStore: h.store}
	index := &cancellingIndex{Index: h.index, cancel: cancel}
	publisher := &recordingPublisher{}

	p, err := NewPipeline(h.fetcher, store, index, WithEventPublisher(publisher))
	require.NoError(t, err)

	result, err := p.Run(ctx, "grant-1")
	require.NoError(t, err)
	require.Error(t, ctx.Err())
	assert.Equal(t, 2, result.Indexed)

	job, err := h.store.GetJob(context.Background(), result.JobID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusCompleted, job.Status)
	assert.Equal(t, 2, job.RecordsProcessed)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, EventJobCompleted, publisher.events[0].key)
}
