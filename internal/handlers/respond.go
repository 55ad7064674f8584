package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"

	"short-drama-service/internal/auth"
	"short-drama-service/internal/services"
)

// errorResponse is the body of every non-2xx JSON response.
type errorResponse struct {
	Error string `json:"error"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func fail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(errorResponse{Error: msg})
}

// serviceError maps a service error onto its HTTP status. notFound is the
// message used for ErrNotFound unless the error names the scene; anything unrecognised is logged and hidden
// behind a generic 500.
func serviceError(c *fiber.Ctx, action, notFound string, err error) error {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		return fail(c, fiber.StatusBadRequest, verr.Message)
	case errors.Is(err, services.ErrSceneNotFound):
		return fail(c, fiber.StatusNotFound, "Scene not found")
	case errors.Is(err, services.ErrNotFound):
		return fail(c, fiber.StatusNotFound, notFound)
	case errors.Is(err, services.ErrDuplicateEmail):
		return fail(c, fiber.StatusBadRequest, "Email already registered")
	case errors.Is(err, services.ErrInvalidCredentials):
		return fail(c, fiber.StatusUnauthorized, "Invalid credentials")
	}
	log.Printf("Error %s: %v", action, err)
	return fail(c, fiber.StatusInternalServerError, "Internal server error")
}

// parseBody decodes the JSON body into out and answers 400 when it is malformed.
// The boolean is false when a response has already been written.
func parseBody(c *fiber.Ctx, out interface{}) (bool, error) {
	if len(c.Body()) == 0 {
		return true, nil
	}
	if err := c.BodyParser(out); err != nil {
		log.Printf("Error parsing request body: %v", err)
		return false, fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	return true, nil
}

// userID returns the id of the authenticated caller.
func userID(c *fiber.Ctx) string {
	if claims := auth.ClaimsFrom(c); claims != nil {
		return claims.UserID
	}
	return ""
}

// ErrorHandler turns errors that escaped a handler into JSON. Fiber errors keep
// their status; everything else becomes a generic 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fail(c, fe.Code, fe.Message)
	}
	log.Printf("Unhandled error on %s %s: %v", c.Method(), c.Path(), err)
	return fail(c, fiber.StatusInternalServerError, "Internal server error")
}
