package handlers

import (
	"github.com/gofiber/fiber/v2"

	"short-drama-service/internal/services"
)

type AuthHandler struct {
	users *services.UserService
}

func NewAuthHandler(users *services.UserService) *AuthHandler {
	return &AuthHandler{users: users}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param body body registerRequest true "Account data"
// @Success 201 {object} services.Session
// @Failure 400 {object} errorResponse "Missing fields, short password or duplicate email"
// @Router /api/auth/register [post]
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	session, err := h.users.Register(req.Name, req.Email, req.Password)
	if err != nil {
		return serviceError(c, "registering user", "User not found", err)
	}
	return c.Status(fiber.StatusCreated).JSON(session)
}

// Login exchanges credentials for a token
// @Summary Log in
// @Tags auth
// @Accept json
// @Produce json
// @Param body body loginRequest true "Credentials"
// @Success 200 {object} services.Session
// @Failure 400 {object} errorResponse "Missing fields"
// @Failure 401 {object} errorResponse "Invalid credentials"
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	session, err := h.users.Login(req.Email, req.Password)
	if err != nil {
		return serviceError(c, "logging in", "User not found", err)
	}
	return c.JSON(session)
}

// Me returns the authenticated user
// @Summary Current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]models.PublicUser
// @Failure 404 {object} errorResponse
// @Router /api/auth/me [get]
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user, err := h.users.Me(userID(c))
	if err != nil {
		return serviceError(c, "fetching current user", "User not found", err)
	}
	return c.JSON(fiber.Map{"user": user})
}
