package handlers

import (
	"authsvc/internal/apperr"
	"authsvc/internal/middleware"
	"authsvc/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/oops"
)

// UserHandler handles HTTP requests for account records. Every route requires a session.
type UserHandler struct {
	service *services.UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// RegisterRoutes registers the user routes behind auth.
func (h *UserHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	router.Get("/user", auth, h.HandleProfile)
	router.Get("/user/:id", auth, h.HandleGetUser)
	router.Patch("/user/:id", auth, h.HandleUpdateUser)
	router.Delete("/user/:id", auth, h.HandleDeleteUser)
	router.Get("/users", auth, h.HandleListUsers)
}

// HandleProfile returns the caller's own record.
func (h *UserHandler) HandleProfile(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	user, err := h.service.Profile(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "User data retrieved successfully",
		"user":    user,
	})
}

// HandleGetUser returns a single user by ID.
func (h *UserHandler) HandleGetUser(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	user, err := h.service.Get(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "User data retrieved successfully",
		"user":    user,
	})
}

// HandleUpdateUser applies a partial update.
func (h *UserHandler) HandleUpdateUser(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req services.UpdateInput
	if err := c.BodyParser(&req); err != nil {
		return badRequestBody(err)
	}

	user, err := h.service.Update(c.UserContext(), actor, c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "User updated successfully",
		"user":    user,
	})
}

// HandleDeleteUser removes a user and their reset codes.
func (h *UserHandler) HandleDeleteUser(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "User deleted successfully"})
}

// HandleListUsers returns every user.
func (h *UserHandler) HandleListUsers(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	users, err := h.service.List(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "Users retrieved successfully",
		"users":   users,
	})
}

func currentActor(c *fiber.Ctx) (services.Actor, error) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return services.Actor{}, oops.Code(apperr.CodeTokenMissing).Errorf("Access denied. No token provided.")
	}
	return actor, nil
}
