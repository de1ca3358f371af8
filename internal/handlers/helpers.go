package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"akimat/internal/middleware"
	"akimat/internal/models"
	"akimat/internal/services"
	"akimat/internal/utils"
)

// msgEDSFailure is the single outward answer for every failed EDS login,
// whatever the actual reason was.
const msgEDSFailure = "Invalid EDS signature or user information"

// RegisterValidators adds the custom binding tags (iin) to gin's validator.
// The iin tag accepts a real IIN as well as the E... placeholder of
// email-registered accounts.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator engine is not go-playground/validator")
	}
	return v.RegisterValidation("iin", func(fl validator.FieldLevel) bool {
		iin := fl.Field().String()
		return utils.IsValidIIN(iin) || utils.IsPseudoIIN(iin)
	})
}

func currentUser(c *gin.Context) (*models.User, bool) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Could not validate credentials"})
		return nil, false
	}
	return u, true
}

func pathID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", "Bearer")
	c.JSON(http.StatusUnauthorized, gin.H{"error": msg})
}

// writeError maps service errors to HTTP answers. Anything unknown is a 500
// with details only in the log.
func writeError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, services.ErrBadRequest):
		badRequest(c, err)
	case errors.Is(err, services.ErrVerificationFailed), errors.Is(err, services.ErrIdentityMissing):
		unauthorized(c, msgEDSFailure)
	case errors.Is(err, services.ErrAccountInactive):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Inactive user"})
	case errors.Is(err, services.ErrInvalidCredentials):
		unauthorized(c, "Incorrect email or password")
	case errors.Is(err, services.ErrTokenInvalid):
		unauthorized(c, "Could not validate credentials")
	case errors.Is(err, services.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	case errors.Is(err, services.ErrNotPending):
		c.JSON(http.StatusForbidden, gin.H{"error": "Only users in pending status can complete registration"})
	case errors.Is(err, services.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
	case errors.Is(err, services.ErrInvalidStatus), errors.Is(err, services.ErrInvalidRole):
		badRequest(c, err)
	case errors.Is(err, services.ErrSelfModeration):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrTokenIssue):
		log.Error().Err(err).Str("op", op).Msg("token issue failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create access token"})
	default:
		log.Error().Err(err).Str("op", op).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
