// dto.go
package todo

// CreateTodoInput is the POST body. ID is honored only by stores
// configured with ClientAssigned ids.
type CreateTodoInput struct {
	ID        *int64 `json:"id"`
	Title     string `json:"title"`
	Completed *bool  `json:"completed"`
}

// UpdateTodoInput is the PUT body. Nil fields keep their current value.
type UpdateTodoInput struct {
	Title     *string `json:"title"`
	Completed *bool   `json:"completed"`
}

// Apply merges the supplied fields over t.
func (in UpdateTodoInput) Apply(t *Todo) {
	if in.Title != nil {
		t.Title = *in.Title
	}
	if in.Completed != nil {
		t.Completed = *in.Completed
	}
}

func (in CreateTodoInput) completed() bool {
	return in.Completed != nil && *in.Completed
}
