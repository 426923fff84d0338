package todo

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Nasaee/go-todo-crud/pkg/utils"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const msgInternal = "Internal server error"

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// Routes registers the five todo endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.ListTodos)
	r.Post("/", h.CreateTodo)
	r.Get("/{id}", h.GetTodoByID)
	r.Put("/{id}", h.UpdateTodo)
	r.Delete("/{id}", h.DeleteTodo)
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// writeError maps a service error to a status. Anything unrecognised is
// logged with full detail and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		utils.WriteError(w, http.StatusNotFound, "Todo not found")
	case errors.Is(err, ErrConflict):
		utils.WriteError(w, http.StatusConflict, "Todo already exists")
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrMissingID):
		utils.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		slog.ErrorContext(r.Context(), "failed to "+op,
			"error", err,
			"request_id", middleware.GetReqID(r.Context()),
		)
		utils.WriteError(w, http.StatusInternalServerError, msgInternal)
	}
}

// GET /
func (h *Handler) ListTodos(w http.ResponseWriter, r *http.Request) {
	todos, err := h.svc.ListTodos(r.Context())
	if err != nil {
		writeError(w, r, "list todos", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, todos)
}

// GET /{id}
func (h *Handler) GetTodoByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid id")
		return
	}

	todo, err := h.svc.GetTodo(r.Context(), id)
	if err != nil {
		writeError(w, r, "get todo", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, todo)
}

// POST /
func (h *Handler) CreateTodo(w http.ResponseWriter, r *http.Request) {
	var in CreateTodoInput
	if err := utils.ReadJSON(w, r, &in); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	todo, err := h.svc.CreateTodo(r.Context(), in)
	if err != nil {
		writeError(w, r, "create todo", err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, todo)
}

// PUT /{id}
func (h *Handler) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var in UpdateTodoInput
	if err := utils.ReadJSON(w, r, &in); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	todo, err := h.svc.UpdateTodo(r.Context(), id, in)
	if err != nil {
		writeError(w, r, "update todo", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, todo)
}

// DELETE /{id}
func (h *Handler) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.svc.DeleteTodo(r.Context(), id); err != nil {
		writeError(w, r, "delete todo", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ping(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "health check failed", "error", err)
		utils.WriteError(w, http.StatusServiceUnavailable, "unavailable")
		return
	}

	utils.WriteJSON(w, http.StatusOK, "ok")
}
