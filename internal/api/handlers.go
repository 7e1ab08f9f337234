package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eion/accounts/internal/users"
)

// Handler serves the user endpoints
type Handler struct {
	users  users.UserManager
	logger *zap.Logger
}

// NewHandler creates user handlers backed by the given manager
func NewHandler(manager users.UserManager, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		users:  manager,
		logger: logger,
	}
}

// RegisterRoutes registers the user routes on the given group
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	group := router.Group("/users")
	{
		group.POST("", h.CreateUser)
		group.GET("", h.ListUsers)
		group.GET("/:uid", h.GetUser)
		group.PATCH("/:uid", h.UpdateUser)
		group.DELETE("/:uid", h.DeleteUser)
	}
}

// deleteResponse carries the store's write time, empty when not reported
type deleteResponse struct {
	DeletedAt string `json:"deletedAt"`
}

func (h *Handler) CreateUser(c *gin.Context) {
	var user users.User
	if err := c.ShouldBindJSON(&user); err != nil {
		h.fail(c, "decode user", err)
		return
	}

	if err := h.users.CreateUser(c.Request.Context(), &user); err != nil {
		h.fail(c, "create user", err, zap.String("uid", user.UID))
		return
	}

	h.logger.Info("User created", zap.String("uid", user.UID))
	c.String(http.StatusOK, "User created")
}

func (h *Handler) ListUsers(c *gin.Context) {
	list, err := h.users.ListUsers(c.Request.Context())
	if err != nil {
		h.fail(c, "list users", err)
		return
	}
	if list == nil {
		list = []*users.User{}
	}

	c.JSON(http.StatusOK, list)
}

func (h *Handler) GetUser(c *gin.Context) {
	uid := c.Param("uid")

	user, err := h.users.GetUser(c.Request.Context(), uid)
	if err != nil {
		h.fail(c, "get user", err, zap.String("uid", uid))
		return
	}

	// A missing user is answered with an empty 200, the way existing clients expect.
	if user == nil {
		c.Status(http.StatusOK)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *Handler) UpdateUser(c *gin.Context) {
	uid := c.Param("uid")

	var update users.UserUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		h.fail(c, "decode user update", err, zap.String("uid", uid))
		return
	}

	if err := h.users.UpdateUser(c.Request.Context(), uid, update); err != nil {
		h.fail(c, "update user", err, zap.String("uid", uid))
		return
	}

	h.logger.Info("User updated", zap.String("uid", uid))
	c.String(http.StatusOK, "User updated")
}

func (h *Handler) DeleteUser(c *gin.Context) {
	uid := c.Param("uid")

	deletedAt, err := h.users.DeleteUser(c.Request.Context(), uid)
	if err != nil {
		h.fail(c, "delete user", err, zap.String("uid", uid))
		return
	}

	resp := deleteResponse{}
	if !deletedAt.IsZero() {
		resp.DeletedAt = deletedAt.UTC().Format(time.RFC3339)
	}

	h.logger.Info("User deleted", zap.String("uid", uid))
	c.JSON(http.StatusOK, resp)
}

// fail answers every error with 400 and the error text
func (h *Handler) fail(c *gin.Context, action string, err error, fields ...zap.Field) {
	fields = append(fields,
		zap.String("action", action),
		zap.String("kind", users.ErrorKind(err)),
		zap.String("request_id", c.GetString(requestIDKey)),
		zap.Error(err))
	h.logger.Warn("Request failed", fields...)

	c.String(http.StatusBadRequest, err.Error())
}
