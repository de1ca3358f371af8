package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"akimat/internal/logger"
	"akimat/internal/models"
	"akimat/internal/services"
)

type AuthHandler struct {
	eds   services.EDSAuthService
	users services.UserService
	log   zerolog.Logger
}

func NewAuthHandler(eds services.EDSAuthService, users services.UserService) *AuthHandler {
	return &AuthHandler{eds: eds, users: users, log: logger.Component("auth")}
}

// @Summary      Вход по ЭЦП
// @Description  Проверяет подписанный XML в NCANode, находит или создаёт пользователя по ИИН и выдаёт токен доступа
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        login  body      models.EDSLoginRequest  true  "Подписанный XML"
// @Success      200    {object}  models.EDSLoginResponse
// @Failure      400    {object}  map[string]string
// @Failure      401    {object}  map[string]string
// @Failure      500    {object}  map[string]string
// @Router       /api/auth/eds/login [post]
func (h *AuthHandler) EDSLogin(c *gin.Context) {
	start := time.Now()

	var req models.EDSLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn().Err(err).Msg("eds login: bind json failed")
		badRequest(c, err)
		return
	}

	resp, err := h.eds.Login(c.Request.Context(), req.SignedXML)
	if err != nil {
		if services.IsAuthFailure(err) {
			// одна и та же 401 для плохой подписи, отсутствия ИИН и деактивированного аккаунта
			h.log.Warn().Err(err).Msg("eds login rejected")
			unauthorized(c, msgEDSFailure)
			return
		}
		writeError(c, "eds login", err)
		return
	}

	h.log.Info().
		Bool("is_new_user", resp.IsNewUser).
		Dur("took", time.Since(start)).
		Msg("eds login ok")
	c.JSON(http.StatusOK, resp)
}

// @Summary      Завершение регистрации
// @Description  Заполняет профиль пользователя в статусе pending и активирует его
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        data  body      models.RegistrationData  true  "Данные профиля"
// @Success      200   {object}  models.RegistrationResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/auth/registration/complete [put]
func (h *AuthHandler) CompleteRegistration(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if !user.IsPending() {
		writeError(c, "complete registration", services.ErrNotPending)
		return
	}

	var data models.RegistrationData
	if err := c.ShouldBindJSON(&data); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.users.CompleteRegistration(c.Request.Context(), user, data)
	if err != nil {
		writeError(c, "complete registration", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary      Регистрация по email
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        data  body      models.RegisterRequest  true  "Данные пользователя"
// @Success      200   {object}  models.TokenResponse
// @Failure      400   {object}  map[string]string
// @Router       /api/auth/email/register [post]
func (h *AuthHandler) EmailRegister(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.users.RegisterWithEmail(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email already registered"})
			return
		}
		writeError(c, "email register", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary      Вход по email
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        login  body      models.LoginRequest  true  "Email и пароль"
// @Success      200    {object}  models.TokenResponse
// @Failure      400    {object}  map[string]string
// @Failure      401    {object}  map[string]string
// @Router       /api/auth/email/login [post]
func (h *AuthHandler) EmailLogin(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.emailLogin(c, req.Email, req.Password)
}

type oauthForm struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
}

// @Summary      OAuth2 password flow
// @Description  Совместимый с OAuth2 эндпоинт (form username/password) для Swagger UI
// @Tags         Auth
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Param        username  formData  string  true  "Email"
// @Param        password  formData  string  true  "Пароль"
// @Success      200       {object}  models.TokenResponse
// @Failure      400       {object}  map[string]string
// @Failure      401       {object}  map[string]string
// @Router       /api/auth/email/oauth/token [post]
func (h *AuthHandler) OAuthToken(c *gin.Context) {
	var form oauthForm
	if err := c.ShouldBind(&form); err != nil {
		badRequest(c, err)
		return
	}
	h.emailLogin(c, form.Username, form.Password)
}

func (h *AuthHandler) emailLogin(c *gin.Context, email, password string) {
	resp, err := h.users.LoginWithEmail(c.Request.Context(), email, password)
	if err != nil {
		writeError(c, "email login", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
