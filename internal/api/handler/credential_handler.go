package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/credential-service/internal/core/domain"
	"github.com/99minutos/credential-service/internal/core/ports"
)

const (
	msgRegistered = "new user registered"
	msgLoggedIn   = "login successfully"
)

// CredentialHandler serves registration and login. Domain errors are
// returned as-is and mapped to HTTP statuses by the API error handler.
type CredentialHandler struct {
	svc ports.CredentialService
}

func NewCredentialHandler(svc ports.CredentialService) *CredentialHandler {
	return &CredentialHandler{svc: svc}
}

// Register creates a new user.
//
// @Summary      Register a new user
// @Tags         credentials
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "User registration details"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /register [post]
func (h *CredentialHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	res, err := h.svc.Register(c.Request().Context(), ports.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Role:     domain.Role(req.Type),
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	// Legacy conflict policy: the duplicate was stored, but the client
	// still gets the conflict text with a 200.
	if res.Conflict != nil {
		return c.JSON(http.StatusOK, messageResponse{Message: domain.ConflictMessage(res.Conflict)})
	}
	return c.JSON(http.StatusOK, messageResponse{Message: msgRegistered})
}

// Login checks a username/password pair. No session or token is issued.
//
// @Summary      Verify credentials
// @Tags         credentials
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /login [post]
func (h *CredentialHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	if _, err := h.svc.Login(c.Request().Context(), req.Username, req.Password); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: msgLoggedIn})
}
