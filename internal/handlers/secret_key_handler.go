package handlers

import (
	"errors"
	"fmt"
	"log"

	"skgvault/internal/middleware"
	"skgvault/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// SecretKeyHandler handles HTTP requests for secret keys.
type SecretKeyHandler struct {
	service  *services.SecretKeyService
	validate *validator.Validate
}

// NewSecretKeyHandler creates a new SecretKeyHandler.
func NewSecretKeyHandler(service *services.SecretKeyService) *SecretKeyHandler {
	return &SecretKeyHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the secret key routes. The generate endpoint is
// open to any API-key holder; everything else requires a user token.
func (h *SecretKeyHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	skgRoutes := router.Group("/skg")
	skgRoutes.Post("/generate", h.HandleGenerate)
	skgRoutes.Post("/", auth, h.HandleCreate)
	skgRoutes.Get("/", auth, h.HandleList)
	skgRoutes.Get("/:id", auth, h.HandleGet)
	skgRoutes.Put("/:id", auth, h.HandleUpdate)
	skgRoutes.Delete("/:id", auth, h.HandleDelete)
}

// TitleRequest is the request body for creating or updating a secret key.
type TitleRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

// HandleGenerate returns a fresh random secret without persisting anything.
func (h *SecretKeyHandler) HandleGenerate(c *fiber.Ctx) error {
	secret, err := h.service.Generate()
	if err != nil {
		log.Printf("Error generating secret key: %v", err)
		return internalError(c)
	}
	return c.JSON(fiber.Map{"secretKey": secret})
}

// HandleCreate creates a new secret key owned by the caller.
func (h *SecretKeyHandler) HandleCreate(c *fiber.Ctx) error {
	var req TitleRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing create secret key body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationError(c, err)
	}

	ownerID := c.Locals(middleware.LocalUserID).(string)
	key, err := h.service.Create(ownerID, req.Title)
	if err != nil {
		log.Printf("Error creating secret key: %v", err)
		return internalError(c)
	}
	return c.Status(fiber.StatusCreated).JSON(key)
}

// HandleList returns the caller's secret keys.
func (h *SecretKeyHandler) HandleList(c *fiber.Ctx) error {
	ownerID := c.Locals(middleware.LocalUserID).(string)
	keys, err := h.service.ListByOwner(ownerID)
	if err != nil {
		log.Printf("Error listing secret keys: %v", err)
		return internalError(c)
	}
	return c.JSON(keys)
}

// HandleGet returns a single secret key owned by the caller.
func (h *SecretKeyHandler) HandleGet(c *fiber.Ctx) error {
	ownerID := c.Locals(middleware.LocalUserID).(string)
	key, err := h.service.Get(c.Params("id"), ownerID)
	if err != nil {
		return secretKeyError(c, err)
	}
	return c.JSON(key)
}

// HandleUpdate changes a secret key's title.
func (h *SecretKeyHandler) HandleUpdate(c *fiber.Ctx) error {
	var req TitleRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing update secret key body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationError(c, err)
	}

	ownerID := c.Locals(middleware.LocalUserID).(string)
	key, err := h.service.UpdateTitle(c.Params("id"), ownerID, req.Title)
	if err != nil {
		return secretKeyError(c, err)
	}
	return c.JSON(key)
}

// HandleDelete removes a secret key owned by the caller.
func (h *SecretKeyHandler) HandleDelete(c *fiber.Ctx) error {
	ownerID := c.Locals(middleware.LocalUserID).(string)
	if err := h.service.Delete(c.Params("id"), ownerID); err != nil {
		return secretKeyError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Secret key deleted successfully"})
}

// secretKeyError maps service errors onto the secret key responses.
// Ownership mismatch is reported as 403 rather than 404, revealing that the
// record exists; carried over intentionally from the source design.
func secretKeyError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Secret key not found",
		})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Unauthorized access",
		})
	default:
		log.Printf("Secret key operation failed: %v", err)
		return internalError(c)
	}
}

func internalError(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal Server Error",
	})
}

// validationError renders a per-field error map for a failed struct
// validation.
func validationError(c *fiber.Ctx, err error) error {
	validationErrors := err.(validator.ValidationErrors)
	errorMessages := make(map[string]string)
	for _, e := range validationErrors {
		errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"errors":  errorMessages,
	})
}
