package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/accord-chat/accord-server/internal/auth"
	"github.com/accord-chat/accord-server/internal/httputil"
	"github.com/accord-chat/accord-server/internal/model"
	"github.com/accord-chat/accord-server/internal/user"
)

// AuthHandler serves registration and login.
type AuthHandler struct {
	users  user.Repository
	secret string
	log    zerolog.Logger
}

// NewAuthHandler creates a new authentication handler.
func NewAuthHandler(users user.Repository, secret string, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{users: users, secret: secret, log: logger}
}

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a freshly issued bearer token.
type TokenResponse struct {
	Token string         `json:"token"`
	User  model.UserView `json:"user"`
}

// Register handles POST /register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var body RegisterRequest
	if err := c.BodyParser(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeValidation, "Invalid request body")
	}

	email, err := auth.ValidateEmail(body.Email)
	if err != nil {
		return h.mapAuthError(c, err)
	}
	if err := auth.ValidateUsername(body.Username); err != nil {
		return h.mapAuthError(c, err)
	}
	if err := auth.ValidatePassword(body.Password); err != nil {
		return h.mapAuthError(c, err)
	}

	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		return h.mapAuthError(c, err)
	}

	u, err := h.users.Create(c.Context(), user.CreateParams{
		Username:     body.Username,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		return h.mapAuthError(c, err)
	}

	token, err := auth.NewToken(u.ID, h.secret)
	if err != nil {
		return h.mapAuthError(c, err)
	}

	return httputil.SuccessStatus(c, fiber.StatusCreated, TokenResponse{Token: token, User: u.ToView()})
}

// Login handles POST /login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var body LoginRequest
	if err := c.BodyParser(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeValidation, "Invalid request body")
	}

	email, err := auth.ValidateEmail(body.Email)
	if err != nil {
		return httputil.Fail(c, fiber.StatusUnauthorized, httputil.CodeUnauthorized, auth.ErrInvalidCredentials.Error())
	}

	u, err := h.users.GetByEmail(c.Context(), email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return httputil.Fail(c, fiber.StatusUnauthorized, httputil.CodeUnauthorized, auth.ErrInvalidCredentials.Error())
		}
		return h.mapAuthError(c, err)
	}

	match, err := auth.VerifyPassword(body.Password, u.PasswordHash)
	if err != nil {
		return h.mapAuthError(c, err)
	}
	if !match {
		return httputil.Fail(c, fiber.StatusUnauthorized, httputil.CodeUnauthorized, auth.ErrInvalidCredentials.Error())
	}

	token, err := auth.NewToken(u.ID, h.secret)
	if err != nil {
		return h.mapAuthError(c, err)
	}

	return httputil.Success(c, TokenResponse{Token: token, User: u.ToView()})
}

// mapAuthError converts auth-layer errors to HTTP responses.
func (h *AuthHandler) mapAuthError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrUsernameLength),
		errors.Is(err, auth.ErrPasswordLength):
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeValidation, err.Error())
	case errors.Is(err, user.ErrEmailTaken):
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeValidation, "Unable to register with the provided email")
	case errors.Is(err, auth.ErrInvalidCredentials):
		return httputil.Fail(c, fiber.StatusUnauthorized, httputil.CodeUnauthorized, err.Error())
	default:
		h.log.Error().Err(err).Str("handler", "auth").Msg("Unhandled auth error")
		return httputil.Fail(c, fiber.StatusInternalServerError, httputil.CodeInternalError, "An internal error occurred")
	}
}
