package todo

import (
	"context"
	"sort"
	"sync"
	"time"
)

// IDPolicy decides who picks the id of a new todo.
type IDPolicy int

const (
	// ClientAssigned requires the caller to send the id; duplicates are ErrConflict.
	ClientAssigned IDPolicy = iota
	// StoreAssigned hands out the next free id and ignores any supplied one.
	StoreAssigned
)

// MemoryRepo keeps todos in a map guarded by a RWMutex. The lock is only
// held while the map is read or written.
type MemoryRepo struct {
	mu     sync.RWMutex
	todos  map[int64]Todo
	nextID int64
	policy IDPolicy
	now    func() time.Time
	seed   []Todo
}

type MemoryOption func(*MemoryRepo)

func WithIDPolicy(p IDPolicy) MemoryOption {
	return func(r *MemoryRepo) { r.policy = p }
}

// WithSeed preloads the store; later entries with the same id replace earlier ones.
func WithSeed(todos ...Todo) MemoryOption {
	return func(r *MemoryRepo) { r.seed = append(r.seed, todos...) }
}

func withClock(now func() time.Time) MemoryOption {
	return func(r *MemoryRepo) { r.now = now }
}

// DefaultSeed is what a fresh process starts with.
func DefaultSeed() []Todo {
	return []Todo{
		{ID: 1, Title: "Learn Go"},
		{ID: 2, Title: "Build a todo API"},
		{ID: 3, Title: "Write tests", Completed: true},
	}
}

func NewMemoryRepo(opts ...MemoryOption) *MemoryRepo {
	r := &MemoryRepo{
		todos:  make(map[int64]Todo),
		nextID: 1,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, t := range r.seed {
		r.put(t)
	}
	r.seed = nil
	return r
}

// put stores t without locking; only for construction.
func (r *MemoryRepo) put(t Todo) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = r.now().UTC()
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	r.todos[t.ID] = t
	if t.ID >= r.nextID {
		r.nextID = t.ID + 1
	}
}

func (r *MemoryRepo) List(ctx context.Context) ([]Todo, error) {
	r.mu.RLock()
	todos := make([]Todo, 0, len(r.todos))
	for _, t := range r.todos {
		todos = append(todos, t)
	}
	r.mu.RUnlock()

	sort.Slice(todos, func(i, j int) bool { return todos[i].ID < todos[j].ID })
	return todos, nil
}

func (r *MemoryRepo) Get(ctx context.Context, id int64) (*Todo, error) {
	r.mu.RLock()
	t, ok := r.todos[id]
	r.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (r *MemoryRepo) Create(ctx context.Context, in CreateTodoInput) (*Todo, error) {
	if r.policy == ClientAssigned && in.ID == nil {
		return nil, ErrMissingID
	}

	now := r.now().UTC()
	t := Todo{
		Title:     in.Title,
		Completed: in.completed(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.policy {
	case ClientAssigned:
		if _, exists := r.todos[*in.ID]; exists {
			return nil, ErrConflict
		}
		t.ID = *in.ID
	default:
		for {
			if _, taken := r.todos[r.nextID]; !taken {
				break
			}
			r.nextID++
		}
		t.ID = r.nextID
	}

	r.todos[t.ID] = t
	if t.ID >= r.nextID {
		r.nextID = t.ID + 1
	}

	return &t, nil
}

// Update merges under the write lock, so concurrent updates of one id are
// applied one after another rather than racing.
func (r *MemoryRepo) Update(ctx context.Context, id int64, in UpdateTodoInput) (*Todo, error) {
	now := r.now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.todos[id]
	if !ok {
		return nil, ErrNotFound
	}

	in.Apply(&t)
	t.UpdatedAt = now
	r.todos[id] = t

	return &t, nil
}

func (r *MemoryRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.todos[id]; !ok {
		return ErrNotFound
	}
	delete(r.todos, id)
	return nil
}

func (r *MemoryRepo) Ping(ctx context.Context) error {
	return nil
}
