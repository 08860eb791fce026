package console

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is an in-memory Backend. It mimics the real API: save
// replaces or appends by id, delete answers 404 for unknown ids.
type fakeBackend struct {
	mu        sync.Mutex
	entries   []Entry
	listErr   error
	saveErr   error
	saves     []SaveRequest
	deleted   []string
	saveDelay time.Duration
}

func (f *fakeBackend) List(ctx context.Context, query string) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return Filter(f.entries, query), nil
}

func (f *fakeBackend) Save(ctx context.Context, req SaveRequest) error {
	if f.saveDelay > 0 {
		time.Sleep(f.saveDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves = append(f.saves, req)
	id := req.ID
	if id == "" {
		id = fmt.Sprintf("new-%d", len(f.saves))
	}
	e := Entry{ID: id, Question: req.Question, Answer: req.Answer}
	for i := range f.entries {
		if f.entries[i].ID == id {
			f.entries[i] = e
			return nil
		}
	}
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeBackend) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.entries {
		if e.ID == id {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			f.deleted = append(f.deleted, id)
			return nil
		}
	}
	return fmt.Errorf("%w: status 404", ErrEntryNotFound)
}

func seededBackend() *fakeBackend {
	return &fakeBackend{entries: []Entry{
		{ID: "b", Question: "beta", CreatedAt: "2023-01-01T00:00:00Z", Tags: []string{"tag1"}},
		{ID: "a", Question: "alpha", CreatedAt: "2022-01-01T00:00:00Z", Tags: []string{"tag2"}},
		{ID: "c", Question: "gamma", CreatedAt: "2024-01-01T00:00:00Z", Tags: []string{"tag1", "x"}},
	}}
}

func loadedController(t *testing.T, b *fakeBackend) *Controller {
	t.Helper()
	c := NewController(b, nil)
	require.NoError(t, c.Load(context.Background()))
	return c
}

func TestController_LoadKeepsBackendOrder(t *testing.T) {
	c := loadedController(t, seededBackend())
	assert.Equal(t, []string{"b", "a", "c"}, ids(c.Visible()))
	assert.Equal(t, 3, c.Snapshot().Total)
}

func TestController_LoadError(t *testing.T) {
	b := seededBackend()
	c := loadedController(t, b)

	b.listErr = fmt.Errorf("%w: connection refused", ErrBackendUnavailable)
	err := c.Load(context.Background())
	require.ErrorIs(t, err, ErrBackendUnavailable)

	// previous store survives a failed load
	assert.Len(t, c.Visible(), 3)
}

func TestController_SearchThenSort(t *testing.T) {
	c := loadedController(t, seededBackend())

	assert.Equal(t, []string{"b", "c"}, ids(c.Search("TAG1")))

	require.NoError(t, c.ToggleSort(FieldCreatedAt))
	require.NoError(t, c.ToggleSort(FieldCreatedAt))
	assert.Equal(t, []string{"c", "b"}, ids(c.Visible()))
}

func TestController_SortSurvivesSearchAndReload(t *testing.T) {
	c := loadedController(t, seededBackend())
	require.NoError(t, c.ToggleSort(FieldQuestion))

	c.Search("")
	require.NoError(t, c.Load(context.Background()))

	assert.Equal(t, []SortKey{{FieldQuestion, Asc}}, c.SortKeys())
	assert.Equal(t, []string{"a", "b", "c"}, ids(c.Visible()))
}

func TestController_ToggleSortUnknownField(t *testing.T) {
	c := loadedController(t, seededBackend())
	err := c.ToggleSort(Field("password"))
	assert.ErrorIs(t, err, ErrUnknownField)
	assert.Empty(t, c.SortKeys())
}

func TestController_ToggleSortNormalizesField(t *testing.T) {
	c := loadedController(t, seededBackend())

	require.NoError(t, c.ToggleSort(Field(" ID ")))
	assert.Equal(t, []SortKey{{FieldID, Asc}}, c.SortKeys())
	assert.Equal(t, []string{"a", "b", "c"}, ids(c.Visible()))

	require.NoError(t, c.ToggleSort(FieldID))
	assert.Equal(t, []SortKey{{FieldID, Desc}}, c.SortKeys())
}

func TestController_DeleteRemovesLocally(t *testing.T) {
	b := seededBackend()
	c := loadedController(t, b)
	c.Search("tag1")

	require.NoError(t, c.Delete(context.Background(), "b"))

	assert.Equal(t, []string{"c"}, ids(c.Visible()))
	_, err := c.Entry("b")
	assert.ErrorIs(t, err, ErrEntryNotFound)
	assert.Equal(t, []string{"b"}, b.deleted)
}

func TestController_DeleteNotFoundLeavesStateUnchanged(t *testing.T) {
	b := seededBackend()
	c := loadedController(t, b)

	// gone on the server, still present locally
	b.entries = b.entries[1:]
	before := c.Snapshot()

	err := c.Delete(context.Background(), "b")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEntryNotFound)
	assert.Equal(t, "ENT001", MapError(err).Code)

	after := c.Snapshot()
	assert.Equal(t, before.Rows, after.Rows)
	assert.Equal(t, before.Total, after.Total)
}

func TestController_SaveReloads(t *testing.T) {
	b := seededBackend()
	c := loadedController(t, b)

	err := c.Save(context.Background(), SaveRequest{Question: "delta", Answer: "d"})
	require.NoError(t, err)

	assert.Len(t, c.Visible(), 4)
	e, err := c.Entry("new-1")
	require.NoError(t, err)
	assert.Equal(t, "delta", e.Question)
}

func TestController_SaveValidation(t *testing.T) {
	b := seededBackend()
	c := loadedController(t, b)

	err := c.Save(context.Background(), SaveRequest{Question: "  ", Answer: "x"})
	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "question", fe.Field)
	assert.Empty(t, b.saves)
}

func TestController_SaveErrorKeepsStore(t *testing.T) {
	b := seededBackend()
	c := loadedController(t, b)
	b.saveErr = fmt.Errorf("%w: status 500", ErrBackendRejected)

	err := c.Save(context.Background(), SaveRequest{Question: "q", Answer: "a"})
	assert.ErrorIs(t, err, ErrBackendRejected)
	assert.Len(t, c.Visible(), 3)
}

func TestController_SaveThenReloadFails(t *testing.T) {
	b := seededBackend()
	c := loadedController(t, b)

	// the backend accepts the save, then stops answering list calls
	b.listErr = fmt.Errorf("%w: connection refused", ErrBackendUnavailable)

	err := c.Save(context.Background(), SaveRequest{Question: "delta", Answer: "d"})
	require.ErrorIs(t, err, ErrSavedNotReloaded)
	assert.Len(t, b.saves, 1)
	assert.Equal(t, "SAV003", MapError(err).Code)
	assert.Len(t, c.Visible(), 3)
}

func TestController_SaveLimited(t *testing.T) {
	b := seededBackend()
	b.saveDelay = 200 * time.Millisecond
	limiter := NewSaveLimiter(1, 20*time.Millisecond)
	c := NewController(b, limiter)

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Save(context.Background(), SaveRequest{Question: "q1", Answer: "a"})
	}()

	require.Eventually(t, func() bool { return limiter.Active() == 1 }, time.Second, 5*time.Millisecond)

	err := c.Save(context.Background(), SaveRequest{Question: "q2", Answer: "a"})
	assert.ErrorIs(t, err, ErrTooManySaves)
	assert.Equal(t, "SAV001", MapError(err).Code)

	require.NoError(t, <-errCh)
	assert.Equal(t, 0, limiter.Active())
}

func TestController_EntryLookup(t *testing.T) {
	c := loadedController(t, seededBackend())

	e, err := c.Entry("a")
	require.NoError(t, err)
	assert.Equal(t, "alpha", e.Question)

	_, err = c.Entry("zzz")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestController_ConcurrentUse(t *testing.T) {
	c := loadedController(t, seededBackend())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			switch i % 4 {
			case 0:
				_ = c.ToggleSort(FieldID)
			case 1:
				c.Search("a")
			case 2:
				_ = c.Load(context.Background())
			default:
				_ = c.Snapshot()
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, len(c.SortKeys()), 1)
}
