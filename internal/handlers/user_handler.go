package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"akimat/internal/authz"
	"akimat/internal/models"
	"akimat/internal/services"
)

type UserHandler struct {
	service services.UserService
}

func NewUserHandler(service services.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// maskFor hides contact details of other users from non-administrators.
func maskFor(caller *models.User, u *models.User) *models.User {
	cp := *u
	cp.PasswordHash = ""
	if caller.ID != u.ID && !authz.CanModerate(caller.Role) {
		cp.PhoneNumber = ""
		cp.IIN = ""
	}
	return &cp
}

// @Summary      Текущий пользователь
// @Tags         Users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.User
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/auth/me [get]
func (h *UserHandler) Me(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, maskFor(user, user))
}

// @Summary      Обновить свой профиль
// @Tags         Users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        data  body      models.ProfileUpdate  true  "Изменяемые поля"
// @Success      200   {object}  models.User
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/auth/me [put]
func (h *UserHandler) UpdateMe(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var upd models.ProfileUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		badRequest(c, err)
		return
	}
	updated, err := h.service.UpdateProfile(c.Request.Context(), user, upd)
	if err != nil {
		writeError(c, "update profile", err)
		return
	}
	c.JSON(http.StatusOK, maskFor(user, updated))
}

type listQuery struct {
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset int    `form:"offset" binding:"omitempty,min=0"`
	IIN    string `form:"iin" binding:"omitempty,iin"`
}

// @Summary      Список пользователей
// @Tags         Users
// @Produce      json
// @Security     BearerAuth
// @Param        limit   query     int     false  "Лимит (1..100)"
// @Param        offset  query     int     false  "Смещение"
// @Param        iin     query     string  false  "Поиск по ИИН (12 цифр или временный E...)"
// @Success      200     {object}  map[string]interface{}
// @Failure      400     {object}  map[string]string
// @Failure      403     {object}  map[string]string
// @Router       /api/users [get]
func (h *UserHandler) List(c *gin.Context) {
	caller, ok := currentUser(c)
	if !ok {
		return
	}
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}

	if q.IIN != "" {
		u, err := h.service.FindByIIN(c.Request.Context(), q.IIN)
		if err != nil {
			writeError(c, "find user by iin", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": []*models.User{maskFor(caller, u)}, "total": 1})
		return
	}

	list, total, err := h.service.ListUsers(c.Request.Context(), q.Limit, q.Offset)
	if err != nil {
		writeError(c, "list users", err)
		return
	}
	items := make([]*models.User, 0, len(list))
	for _, u := range list {
		items = append(items, maskFor(caller, u))
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
}

// @Summary      Создать пользователя
// @Description  Только администратор. Email уникален, роль: employee | supervisor | administrator.
// @Tags         Users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        data  body      models.AdminUserCreate  true  "Данные пользователя"
// @Success      201   {object}  models.User
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Router       /api/users [post]
func (h *UserHandler) Create(c *gin.Context) {
	caller, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.AdminUserCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.service.CreateUser(c.Request.Context(), caller, req)
	if err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "A user with this email already exists"})
			return
		}
		writeError(c, "create user", err)
		return
	}
	c.JSON(http.StatusCreated, maskFor(caller, u))
}

// @Summary      Пользователь по ID
// @Tags         Users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "ID пользователя"
// @Success      200  {object}  models.User
// @Failure      404  {object}  map[string]string
// @Router       /api/users/{id} [get]
func (h *UserHandler) GetByID(c *gin.Context) {
	caller, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	u, err := h.service.GetUser(c.Request.Context(), id)
	if err != nil {
		writeError(c, "get user", err)
		return
	}
	c.JSON(http.StatusOK, maskFor(caller, u))
}

// @Summary      Деактивация / повторная активация
// @Tags         Users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                         true  "ID пользователя"
// @Param        data  body      models.StatusUpdateRequest  true  "active | inactive"
// @Success      200   {object}  models.User
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/users/{id}/status [put]
func (h *UserHandler) UpdateStatus(c *gin.Context) {
	caller, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req models.StatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.service.SetStatus(c.Request.Context(), caller, id, req.Status)
	if err != nil {
		writeError(c, "set status", err)
		return
	}
	c.JSON(http.StatusOK, maskFor(caller, u))
}

// @Summary      Смена роли
// @Tags         Users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                       true  "ID пользователя"
// @Param        data  body      models.RoleUpdateRequest  true  "employee | supervisor | administrator"
// @Success      200   {object}  models.User
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/users/{id}/role [put]
func (h *UserHandler) UpdateRole(c *gin.Context) {
	caller, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req models.RoleUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.service.SetRole(c.Request.Context(), caller, id, req.Role)
	if err != nil {
		writeError(c, "set role", err)
		return
	}
	c.JSON(http.StatusOK, maskFor(caller, u))
}
