package handlers

import (
	"errors"
	"log"

	"skgvault/internal/middleware"
	"skgvault/internal/models"
	"skgvault/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// UserHandler handles HTTP requests for registration, login, user management
// and favorites.
type UserHandler struct {
	authService *services.AuthService
	userService *services.UserService
	validate    *validator.Validate
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(authService *services.AuthService, userService *services.UserService) *UserHandler {
	return &UserHandler{
		authService: authService,
		userService: userService,
		validate:    validator.New(),
	}
}

// RegisterRoutes registers the user routes. The self routes are registered
// before the admin "/:id" routes so Fiber never matches "myself" as an id.
func (h *UserHandler) RegisterRoutes(router fiber.Router, auth, admin fiber.Handler) {
	userRoutes := router.Group("/users")

	userRoutes.Get("/myself", auth, h.HandleGetMyself)
	userRoutes.Put("/myself", auth, h.HandleUpdateMyself)
	userRoutes.Delete("/myself", auth, h.HandleDeleteMyself)

	userRoutes.Post("/register", h.HandleRegister)
	userRoutes.Post("/login", h.HandleLogin)

	userRoutes.Post("/addsktofav/:skId", auth, h.HandleAddFavorite)

	userRoutes.Get("/", admin, h.HandleGetUsers)
	userRoutes.Get("/:id", admin, h.HandleGetUser)
	userRoutes.Put("/:id", admin, h.HandleUpdateUser)
	userRoutes.Delete("/:id", admin, h.HandleDeleteUser)
}

// RegisterRequest is the request body for registration.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Surname  string `json:"surname" validate:"omitempty,max=100"`
	Username string `json:"username" validate:"required,max=100"`
	Password string `json:"password" validate:"required"`
	IsAdmin  bool   `json:"isAdmin"`
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleRegister registers a new user and returns a token for the new
// identity.
func (h *UserHandler) HandleRegister(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing register request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationError(c, err)
	}

	user := &models.User{
		Name:     req.Name,
		Surname:  req.Surname,
		Username: req.Username,
		Password: req.Password,
		IsAdmin:  req.IsAdmin,
	}
	token, err := h.authService.RegisterUser(user)
	if err != nil {
		if errors.Is(err, services.ErrConflict) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "User already exists",
			})
		}
		log.Printf("Error registering user: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Error registering user",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully",
		"token":   token,
	})
}

// HandleLogin authenticates a user and issues a token.
func (h *UserHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing login request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationError(c, err)
	}

	token, err := h.authService.LoginUser(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Invalid credentials",
			})
		}
		log.Printf("Error during login for user %s: %v", req.Username, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Error logging in",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Login successful",
		"token":   token,
	})
}

// HandleGetUsers returns all users, most recently created first. Admin only.
func (h *UserHandler) HandleGetUsers(c *fiber.Ctx) error {
	users, err := h.userService.GetAll()
	if err != nil {
		log.Printf("Error fetching users: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Error fetching users",
		})
	}
	return c.JSON(users)
}

// HandleGetUser returns a single user by id. Admin only.
func (h *UserHandler) HandleGetUser(c *fiber.Ctx) error {
	return h.getUser(c, c.Params("id"))
}

// HandleUpdateUser applies a partial update to any user. Admin only; this is
// the one update path allowed to change the admin flag.
func (h *UserHandler) HandleUpdateUser(c *fiber.Ctx) error {
	return h.updateUser(c, c.Params("id"), true)
}

// HandleDeleteUser removes any user. Admin only.
func (h *UserHandler) HandleDeleteUser(c *fiber.Ctx) error {
	return h.deleteUser(c, c.Params("id"))
}

// HandleGetMyself returns the caller's own record. The id comes from the
// verified token, never from the request path.
func (h *UserHandler) HandleGetMyself(c *fiber.Ctx) error {
	return h.getUser(c, c.Locals(middleware.LocalUserID).(string))
}

// HandleUpdateMyself applies a partial update to the caller's own record.
func (h *UserHandler) HandleUpdateMyself(c *fiber.Ctx) error {
	return h.updateUser(c, c.Locals(middleware.LocalUserID).(string), false)
}

// HandleDeleteMyself removes the caller's own record.
func (h *UserHandler) HandleDeleteMyself(c *fiber.Ctx) error {
	return h.deleteUser(c, c.Locals(middleware.LocalUserID).(string))
}

// HandleAddFavorite appends a secret key reference to the caller's favorites.
func (h *UserHandler) HandleAddFavorite(c *fiber.Ctx) error {
	userID := c.Locals(middleware.LocalUserID).(string)
	err := h.userService.AddFavorite(userID, c.Params("skId"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "User not found",
			})
		case errors.Is(err, services.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Secret key not found",
			})
		case errors.Is(err, services.ErrConflict):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Secret key already in favourites",
			})
		default:
			log.Printf("Error adding secret key to favourites: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "Error adding secret key to favourites",
			})
		}
	}
	return c.JSON(fiber.Map{"message": "Secret key added to favourites"})
}

func (h *UserHandler) getUser(c *fiber.Ctx, id string) error {
	user, err := h.userService.GetByID(id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "User not found",
			})
		}
		log.Printf("Error fetching user %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Error fetching user",
		})
	}
	return c.JSON(user)
}

func (h *UserHandler) updateUser(c *fiber.Ctx, id string, allowAdminFlag bool) error {
	var update services.UserUpdate
	if err := c.BodyParser(&update); err != nil {
		log.Printf("Error parsing update request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if !allowAdminFlag {
		update.IsAdmin = nil
	}

	if err := h.userService.Update(id, update); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "User not found",
			})
		}
		log.Printf("Error updating user %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Error updating user",
		})
	}
	return c.JSON(fiber.Map{"message": "User updated successfully"})
}

func (h *UserHandler) deleteUser(c *fiber.Ctx, id string) error {
	if err := h.userService.Delete(id); err != nil {
		log.Printf("Error deleting user %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Error deleting user",
		})
	}
	return c.JSON(fiber.Map{"message": "User deleted successfully"})
}
