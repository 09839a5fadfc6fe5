package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"todo-api/internal/auth"
	"todo-api/internal/domain"
	"todo-api/internal/service"
	"todo-api/internal/storage"
	"todo-api/internal/validation"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	todos  service.TodoService
	users  service.UserService
	tokens *auth.Tokens
	logger logrus.FieldLogger
}

func NewHandler(todos service.TodoService, users service.UserService, tokens *auth.Tokens, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		todos:  todos,
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestLogger(h.logger), corsMiddleware())

	api := router.Group("/api")
	{
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})

		api.POST("/user", h.register)

		api.POST("/auth", h.login)
		api.GET("/auth", authMiddleware(h.tokens, h.logger), h.currentUser)

		todo := api.Group("/todo", authMiddleware(h.tokens, h.logger))
		for _, root := range []string{"", "/"} {
			todo.GET(root, h.listTodos)
			todo.POST(root, h.createTodo)
		}
		todo.POST("/export", h.exportTodos)
		todo.GET("/export", h.listExports)
		todo.PUT("/:todoid", h.updateTodo)
		todo.DELETE("/:todoid", h.deleteTodo)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, x-auth-token")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// bindBody decodes the JSON body into dst. An empty body leaves dst zeroed so
// that validation reports the missing fields.
func bindBody(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"errors": validation.Errors{{
			Msg:      "request body must be a JSON object",
			Location: "body",
		}}})
		return false
	}
	return true
}

func validated(c *gin.Context, payload any) bool {
	if errs := validation.Check(payload); errs != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": errs})
		return false
	}
	return true
}

func (h *Handler) serverError(c *gin.Context, err error, msg string) {
	h.logger.WithError(err).WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.FullPath(),
	}).Error(msg)
	c.JSON(http.StatusInternalServerError, gin.H{"msg": "Server Error"})
}

type TodoResponse struct {
	ID          string `json:"_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	User        string `json:"user"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

type UserResponse struct {
	ID        string `json:"_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
}

type ExportObjectResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"lastModified,omitempty"`
}

func todoToResponse(todo domain.Todo) TodoResponse {
	return TodoResponse{
		ID:          todo.ID,
		Title:       todo.Title,
		Description: todo.Description,
		User:        todo.Owner,
		CreatedAt:   todo.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   todo.UpdatedAt.Format(time.RFC3339),
	}
}

func userToResponse(user domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
}

func objectToResponse(obj storage.ObjectInfo) ExportObjectResponse {
	resp := ExportObjectResponse{
		Key:  obj.Key,
		Size: obj.Size,
	}
	if obj.LastModified != nil && !obj.LastModified.IsZero() {
		v := obj.LastModified.Format(time.RFC3339)
		resp.LastModified = &v
	}
	return resp
}
