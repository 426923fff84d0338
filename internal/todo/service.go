package todo

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidInput = errors.New("invalid input")

// Service is the business logic layer in front of a TodoRepository.
type Service interface {
	ListTodos(ctx context.Context) ([]Todo, error)
	GetTodo(ctx context.Context, id int64) (*Todo, error)
	CreateTodo(ctx context.Context, in CreateTodoInput) (*Todo, error)
	UpdateTodo(ctx context.Context, id int64, in UpdateTodoInput) (*Todo, error)
	DeleteTodo(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
}

type service struct {
	repo TodoRepository
}

func NewService(repo TodoRepository) Service {
	return &service{repo: repo}
}

// ===== Create =====

func (s *service) CreateTodo(ctx context.Context, in CreateTodoInput) (*Todo, error) {
	// stored as sent; whitespace only counts as missing
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}

	return s.repo.Create(ctx, in)
}

// ===== Get / List =====

func (s *service) GetTodo(ctx context.Context, id int64) (*Todo, error) {
	return s.repo.Get(ctx, id)
}

func (s *service) ListTodos(ctx context.Context) ([]Todo, error) {
	return s.repo.List(ctx)
}

// ===== Update =====

func (s *service) UpdateTodo(ctx context.Context, id int64, in UpdateTodoInput) (*Todo, error) {
	// title is optional, but when sent it cannot be blank
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return nil, fmt.Errorf("%w: title cannot be empty", ErrInvalidInput)
	}

	return s.repo.Update(ctx, id, in)
}

// ===== Delete =====

func (s *service) DeleteTodo(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func (s *service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
