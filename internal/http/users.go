package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"todo-api/internal/service"
	"todo-api/internal/validation"
)

func (h *Handler) register(c *gin.Context) {
	var req validation.RegisterInput
	if !bindBody(c, &req) || !validated(c, &req) {
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrUserAlreadyExists) {
			c.JSON(http.StatusBadRequest, gin.H{"errors": validation.Errors{{Msg: "User already exists"}}})
			return
		}
		h.serverError(c, err, "register user")
		return
	}

	h.respondWithToken(c, http.StatusCreated, user.ID)
}

func (h *Handler) login(c *gin.Context) {
	var req validation.LoginInput
	if !bindBody(c, &req) || !validated(c, &req) {
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusBadRequest, gin.H{"errors": validation.Errors{{Msg: "Invalid Credentials"}}})
			return
		}
		h.serverError(c, err, "authenticate user")
		return
	}

	h.respondWithToken(c, http.StatusOK, user.ID)
}

func (h *Handler) currentUser(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), currentUserID(c))
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"msg": "User not found"})
			return
		}
		h.serverError(c, err, "load current user")
		return
	}

	c.JSON(http.StatusOK, userToResponse(*user))
}

func (h *Handler) respondWithToken(c *gin.Context, status int, userID string) {
	token, err := h.tokens.Issue(userID)
	if err != nil {
		h.serverError(c, err, "issue token")
		return
	}
	c.JSON(status, gin.H{"token": token})
}
