package todo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ================== Errors ==================

var (
	ErrNotFound  = errors.New("todo not found")
	ErrConflict  = errors.New("todo already exists")
	ErrMissingID = errors.New("id is required")
)

// used with DELETE to check that a row was actually removed
func checkRowsAffectedOne(cmdTag pgconn.CommandTag) error {
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ================== Interface ==================

// TodoRepository is the storage contract shared by every backend.
// Implementations must be safe for concurrent use.
type TodoRepository interface {
	List(ctx context.Context) ([]Todo, error)
	Get(ctx context.Context, id int64) (*Todo, error)
	Create(ctx context.Context, in CreateTodoInput) (*Todo, error)
	Update(ctx context.Context, id int64, in UpdateTodoInput) (*Todo, error)
	Delete(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
}

// DBTX is the subset of *pgxpool.Pool the Postgres backend needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

const todoColumns = `id, title, completed, created_at, updated_at`

type PostgresRepo struct {
	db DBTX
}

func NewRepository(db DBTX) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func scanTodo(row pgx.Row) (*Todo, error) {
	var t Todo
	if err := row.Scan(&t.ID, &t.Title, &t.Completed, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]Todo, error) {
	query := `
		SELECT ` + todoColumns + `
		FROM todos
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	defer rows.Close()

	todos := make([]Todo, 0)
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		todos = append(todos, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}

	return todos, nil
}

func (r *PostgresRepo) Get(ctx context.Context, id int64) (*Todo, error) {
	query := `
		SELECT ` + todoColumns + `
		FROM todos
		WHERE id = $1
	`

	t, err := scanTodo(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get todo %d: %w", id, err)
	}

	return t, nil
}

// Create inserts a row; id and timestamps come from the database, so a
// caller-supplied id is ignored.
func (r *PostgresRepo) Create(ctx context.Context, in CreateTodoInput) (*Todo, error) {
	query := `
		INSERT INTO todos (title, completed)
		VALUES ($1, $2)
		RETURNING ` + todoColumns

	t, err := scanTodo(r.db.QueryRow(ctx, query, in.Title, in.completed()))
	if err != nil {
		return nil, fmt.Errorf("create todo: %w", err)
	}

	return t, nil
}

// Update is a read-modify-write without row locking: two concurrent updates
// of the same id both succeed and the later write wins.
func (r *PostgresRepo) Update(ctx context.Context, id int64, in UpdateTodoInput) (*Todo, error) {
	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	in.Apply(current)

	query := `
		UPDATE todos
		SET
			title = $1,
			completed = $2,
			updated_at = NOW()
		WHERE id = $3
		RETURNING ` + todoColumns

	t, err := scanTodo(r.db.QueryRow(ctx, query, current.Title, current.Completed, id))
	if err != nil {
		// deleted between the read and the write
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update todo %d: %w", id, err)
	}

	return t, nil
}

func (r *PostgresRepo) Delete(ctx context.Context, id int64) error {
	query := `
		DELETE FROM todos
		WHERE id = $1
	`

	cmdTag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete todo %d: %w", id, err)
	}

	return checkRowsAffectedOne(cmdTag)
}

func (r *PostgresRepo) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
