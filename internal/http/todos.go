package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"todo-api/internal/service"
	"todo-api/internal/validation"
)

func (h *Handler) listTodos(c *gin.Context) {
	todos, err := h.todos.ListMine(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.serverError(c, err, "list todos")
		return
	}

	resp := make([]TodoResponse, len(todos))
	for i := range todos {
		resp[i] = todoToResponse(todos[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) createTodo(c *gin.Context) {
	var req validation.TodoInput
	if !bindBody(c, &req) || !validated(c, &req) {
		return
	}

	todo, err := h.todos.Create(c.Request.Context(), currentUserID(c), req.Title, req.Description)
	if err != nil {
		h.serverError(c, err, "create todo")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"msg": "Todo saved", "newTodo": todoToResponse(*todo)})
}

func (h *Handler) updateTodo(c *gin.Context) {
	var req validation.TodoInput
	if !bindBody(c, &req) || !validated(c, &req) {
		return
	}

	todo, err := h.todos.UpdateMine(c.Request.Context(), currentUserID(c), c.Param("todoid"), req.Title, req.Description)
	if err != nil {
		h.todoError(c, err, "update todo")
		return
	}

	c.JSON(http.StatusOK, gin.H{"msg": "todo updated", "updatedTodo": todoToResponse(*todo)})
}

func (h *Handler) deleteTodo(c *gin.Context) {
	if err := h.todos.DeleteMine(c.Request.Context(), currentUserID(c), c.Param("todoid")); err != nil {
		h.todoError(c, err, "delete todo")
		return
	}

	c.JSON(http.StatusOK, gin.H{"msg": "todo deleted"})
}

func (h *Handler) exportTodos(c *gin.Context) {
	export, err := h.todos.ExportMine(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.todoError(c, err, "export todos")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"msg":      "todos exported",
		"location": export.Location,
		"url":      export.URL,
		"count":    export.Count,
	})
}

func (h *Handler) listExports(c *gin.Context) {
	objects, err := h.todos.ListExports(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.todoError(c, err, "list exports")
		return
	}

	resp := make([]ExportObjectResponse, len(objects))
	for i := range objects {
		resp[i] = objectToResponse(objects[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) todoError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, service.ErrTodoNotFound):
		c.JSON(http.StatusNotFound, gin.H{"msg": "Todo not found"})
	case errors.Is(err, service.ErrNotOwner):
		c.JSON(http.StatusUnauthorized, gin.H{"msg": "You are not a valid user"})
	case errors.Is(err, service.ErrExportDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"msg": "Export storage not configured"})
	default:
		h.serverError(c, err, msg)
	}
}
