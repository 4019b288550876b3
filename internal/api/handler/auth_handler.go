package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinicflow/rdv-api/internal/api/metrics"
	"github.com/clinicflow/rdv-api/internal/core/domain"
	"github.com/clinicflow/rdv-api/internal/core/ports"
)

type AuthHandler struct {
	authService ports.AuthService
}

func NewAuthHandler(authService ports.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (r registerRequest) input() ports.RegisterInput {
	return ports.RegisterInput{Username: r.Username, Email: r.Email, Password: r.Password, Role: r.Role}
}

// Register creates a new account for any role.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "User registration details"
// @Success      201   {object}  registerResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Failure      500   {object}  ErrorResponse
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.authService.Register(c.Request().Context(), req.input())
	if err != nil {
		return err
	}

	metrics.RegistrationsTotal.WithLabelValues(user.Role.String(), "self").Inc()
	return c.JSON(http.StatusCreated, registerResponse{Message: "user registered successfully", User: toUserResponse(user)})
}

// RegisterUser lets a receptionist create a doctor or patient account.
//
// @Summary      Register a doctor or patient
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      registerRequest  true  "Account details; role is Medecin or Patient"
// @Success      201   {object}  registerResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      401   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Failure      500   {object}  ErrorResponse
// @Router       /auth/register-user [post]
func (h *AuthHandler) RegisterUser(c echo.Context) error {
	var req registerRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.authService.RegisterByReceptionist(c.Request().Context(), req.input())
	if err != nil {
		return err
	}

	metrics.RegistrationsTotal.WithLabelValues(user.Role.String(), "receptionist").Inc()
	return c.JSON(http.StatusCreated, registerResponse{Message: "user created successfully", User: toUserResponse(user)})
}

// Login authenticates a user and returns a bearer token.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      429   {object}  ErrorResponse
// @Failure      500   {object}  ErrorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues(errorCode(err)).Inc()
		return err
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	return c.JSON(http.StatusOK, loginResponse{
		Token: res.Token,
		User: loginUser{
			ID:    res.User.ID,
			Email: res.User.Email,
			Role:  res.User.Role.String(),
		},
	})
}

// ListUsers returns every account.
//
// @Summary      List users
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   userResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /auth/users [get]
func (h *AuthHandler) ListUsers(c echo.Context) error {
	users, err := h.authService.ListUsers(c.Request().Context())
	if err != nil {
		return err
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return c.JSON(http.StatusOK, out)
}

// ReceptionistCount returns how many receptionist accounts exist.
//
// @Summary      Count receptionists
// @Tags         auth
// @Produce      json
// @Success      200  {object}  countResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /auth/secretaires-count [get]
func (h *AuthHandler) ReceptionistCount(c echo.Context) error {
	n, err := h.authService.CountByRole(c.Request().Context(), domain.RoleReceptionist.String())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, countResponse{Count: n})
}

// bindAndValidate decodes the body into req and runs the registered validator.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if c.Echo().Validator == nil {
		return nil
	}
	return c.Validate(req)
}
