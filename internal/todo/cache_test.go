package todo

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// countingRepo counts reads that reach the backend.
type countingRepo struct {
	TodoRepository
	gets atomic.Int64
}

func (c *countingRepo) Get(ctx context.Context, id int64) (*Todo, error) {
	c.gets.Add(1)
	return c.TodoRepository.Get(ctx, id)
}

func newCachedRepo(t *testing.T) (*CachedRepo, *countingRepo, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })

	backend := &countingRepo{TodoRepository: NewMemoryRepo(WithSeed(DefaultSeed()...))}
	return NewCachedRepo(backend, rdb, time.Minute), backend, mr
}

func TestCachedRepoGetReadsThrough(t *testing.T) {
	ctx := context.Background()
	cached, backend, mr := newCachedRepo(t)

	first, err := cached.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !mr.Exists(cacheKey(1)) {
		t.Fatalf("expected %s to be cached", cacheKey(1))
	}

	second, err := cached.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if backend.gets.Load() != 1 {
		t.Errorf("expected one backend read, got %d", backend.gets.Load())
	}
	if second.Title != first.Title || second.ID != first.ID {
		t.Errorf("cached todo differs: %+v vs %+v", second, first)
	}

	mr.FastForward(2 * time.Minute)
	if mr.Exists(cacheKey(1)) {
		t.Errorf("expected cache entry to expire")
	}
}

func TestCachedRepoGetNotFoundIsNotCached(t *testing.T) {
	ctx := context.Background()
	cached, _, mr := newCachedRepo(t)

	if _, err := cached.Get(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if mr.Exists(cacheKey(99)) {
		t.Errorf("missing todo should not be cached")
	}
}

func TestCachedRepoWritesInvalidate(t *testing.T) {
	ctx := context.Background()
	cached, _, mr := newCachedRepo(t)

	if _, err := cached.Get(ctx, 1); err != nil {
		t.Fatalf("get: %v", err)
	}

	updated, err := cached.Update(ctx, 1, UpdateTodoInput{Completed: ptr(true)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if mr.Exists(cacheKey(1)) {
		t.Errorf("update should drop the cached entry")
	}

	got, err := cached.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Completed != updated.Completed {
		t.Errorf("expected fresh value after update, got %+v", got)
	}

	if err := cached.Delete(ctx, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists(cacheKey(1)) {
		t.Errorf("delete should drop the cached entry")
	}
	if _, err := cached.Get(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestCachedRepoReadsSurviveRedisOutage(t *testing.T) {
	ctx := context.Background()
	cached, backend, mr := newCachedRepo(t)

	mr.Close()

	got, err := cached.Get(ctx, 2)
	if err != nil {
		t.Fatalf("expected fallback to backend, got %v", err)
	}
	if got.ID != 2 || backend.gets.Load() != 1 {
		t.Errorf("unexpected result %+v after %d backend reads", got, backend.gets.Load())
	}
	if err := cached.Ping(ctx); err != nil {
		t.Errorf("ping should report the backend only: %v", err)
	}
}

func TestCachedRepoWriteFailsWhenInvalidationFails(t *testing.T) {
	ctx := context.Background()
	cached, _, mr := newCachedRepo(t)

	if _, err := cached.Get(ctx, 1); err != nil {
		t.Fatalf("get: %v", err)
	}

	mr.SetError("LOADING redis is loading the dataset in memory")

	err := cached.Delete(ctx, 1)
	if err == nil {
		t.Fatalf("expected delete to fail while the cache cannot be invalidated")
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) {
		t.Errorf("expected an internal error, got %v", err)
	}
	if _, err := cached.Update(ctx, 1, UpdateTodoInput{Completed: ptr(true)}); err == nil {
		t.Errorf("expected update to fail while the cache cannot be invalidated")
	}

	mr.SetError("")

	// nothing was written, so the cached copy is still the truth
	got, err := cached.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Completed {
		t.Errorf("failed update must not have reached the backend: %+v", got)
	}

	if err := cached.Delete(ctx, 1); err != nil {
		t.Fatalf("delete after recovery: %v", err)
	}
	if _, err := cached.Get(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

// hookRepo runs callbacks after backend calls return.
type hookRepo struct {
	TodoRepository
	afterGet    func()
	afterDelete func()
}

func (h *hookRepo) Get(ctx context.Context, id int64) (*Todo, error) {
	t, err := h.TodoRepository.Get(ctx, id)
	if h.afterGet != nil {
		h.afterGet()
	}
	return t, err
}

func (h *hookRepo) Delete(ctx context.Context, id int64) error {
	err := h.TodoRepository.Delete(ctx, id)
	if h.afterDelete != nil {
		h.afterDelete()
	}
	return err
}

func newHookedCachedRepo(t *testing.T) (*CachedRepo, *hookRepo, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })

	backend := &hookRepo{TodoRepository: NewMemoryRepo(WithSeed(DefaultSeed()...))}
	return NewCachedRepo(backend, rdb, time.Minute), backend, mr
}

func TestCachedRepoDeleteFailsWhenPostWriteInvalidationFails(t *testing.T) {
	ctx := context.Background()
	cached, backend, mr := newHookedCachedRepo(t)

	if _, err := cached.Get(ctx, 1); err != nil {
		t.Fatalf("get: %v", err)
	}

	backend.afterDelete = func() { mr.SetError("LOADING redis blip") }

	if err := cached.Delete(ctx, 1); err == nil {
		t.Fatalf("expected delete to report the failed invalidation")
	}

	backend.afterDelete = nil
	mr.SetError("")

	if _, err := cached.Get(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound once redis recovers, got %v", err)
	}
}

func TestCachedRepoReadRacingDeleteDoesNotResurrect(t *testing.T) {
	ctx := context.Background()
	cached, backend, mr := newHookedCachedRepo(t)

	readDone := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	backend.afterGet = func() {
		once.Do(func() {
			close(readDone)
			<-release
		})
	}

	getErr := make(chan error, 1)
	go func() {
		_, err := cached.Get(ctx, 1)
		getErr <- err
	}()

	// the reader holds the old row and has not filled the cache yet
	<-readDone
	if err := cached.Delete(ctx, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	close(release)

	if err := <-getErr; err != nil {
		t.Fatalf("racing get: %v", err)
	}
	if mr.Exists(cacheKey(1)) {
		t.Errorf("stale read was written to the cache after delete")
	}
	if _, err := cached.Get(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestCachedRepoReadRacingUpdateIsNotStale(t *testing.T) {
	ctx := context.Background()
	cached, backend, _ := newHookedCachedRepo(t)

	readDone := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	backend.afterGet = func() {
		once.Do(func() {
			close(readDone)
			<-release
		})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		cached.Get(ctx, 2)
	}()

	<-readDone
	if _, err := cached.Update(ctx, 2, UpdateTodoInput{Title: ptr("Build a better todo API")}); err != nil {
		t.Fatalf("update: %v", err)
	}
	close(release)
	<-done

	got, err := cached.Get(ctx, 2)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Build a better todo API" {
		t.Errorf("expected updated title, got %q", got.Title)
	}
}

func TestCachedRepoConcurrentGetAndDelete(t *testing.T) {
	ctx := context.Background()
	cached, _, _ := newCachedRepo(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cached.Get(ctx, 3); err != nil && !errors.Is(err, ErrNotFound) {
				t.Errorf("get: %v", err)
			}
		}()
	}

	if err := cached.Delete(ctx, 3); err != nil {
		t.Fatalf("delete: %v", err)
	}
	wg.Wait()

	if _, err := cached.Get(ctx, 3); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestCachedRepoDropsCorruptEntry(t *testing.T) {
	ctx := context.Background()
	cached, backend, mr := newCachedRepo(t)

	if err := mr.Set(cacheKey(3), "not json"); err != nil {
		t.Fatalf("seed redis: %v", err)
	}

	got, err := cached.Get(ctx, 3)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Write tests" || backend.gets.Load() != 1 {
		t.Errorf("expected backend read, got %+v after %d reads", got, backend.gets.Load())
	}
}

func TestCachedRepoInvalidationFailureIsInternalError(t *testing.T) {
	cached, _, mr := newCachedRepo(t)
	router := newTestRouter(cached)

	mr.SetError("LOADING redis blip")
	rr := doRequest(t, router, http.MethodDelete, "/1", "")
	mr.SetError("")

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, rr.Code)
	}
	if body := strings.TrimSpace(rr.Body.String()); body != `"Internal server error"` {
		t.Errorf("expected generic message, got %s", body)
	}

	rr = doRequest(t, router, http.MethodGet, "/1", "")
	if rr.Code != http.StatusOK {
		t.Errorf("failed delete must leave the todo readable, got %d", rr.Code)
	}
}
