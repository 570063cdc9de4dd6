package services

import (
	"errors"
	"fmt"

	"skgvault/internal/models"
	"skgvault/internal/repositories"

	"golang.org/x/crypto/bcrypt"
)

// UserUpdate carries the optional fields of a partial user update.
// Nil pointers mean "leave unchanged". Handlers decide which fields a caller
// may populate; the self endpoints never set IsAdmin.
type UserUpdate struct {
	Name     *string `json:"name"`
	Surname  *string `json:"surname"`
	Username *string `json:"username"`
	Password *string `json:"password"`
	IsAdmin  *bool   `json:"isAdmin"`
}

// UserService handles user profile management and favorites.
type UserService struct {
	userRepo repositories.UserRepository
	skRepo   repositories.SecretKeyRepository
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repositories.UserRepository, skRepo repositories.SecretKeyRepository) *UserService {
	return &UserService{
		userRepo: userRepo,
		skRepo:   skRepo,
	}
}

// GetAll returns every user, most recently created first.
func (s *UserService) GetAll() ([]models.User, error) {
	return s.userRepo.GetAll()
}

// GetByID returns a single user.
func (s *UserService) GetByID(id string) (*models.User, error) {
	user, err := s.userRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, repositories.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// Update applies a partial update to a user record. A supplied password is
// rehashed before storage.
func (s *UserService) Update(id string, update UserUpdate) error {
	user, err := s.GetByID(id)
	if err != nil {
		return err
	}

	if update.Name != nil {
		user.Name = *update.Name
	}
	if update.Surname != nil {
		user.Surname = *update.Surname
	}
	if update.Username != nil {
		user.Username = *update.Username
	}
	if update.IsAdmin != nil {
		user.IsAdmin = *update.IsAdmin
	}
	if update.Password != nil {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(*update.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		user.Password = string(hashedPassword)
	}

	if err := s.userRepo.Update(user); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// Delete removes a user record unconditionally.
func (s *UserService) Delete(id string) error {
	if err := s.userRepo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// AddFavorite appends a secret key reference to the user's favorites list.
// The key must exist somewhere in the store but need not be owned by the
// caller. A key already in the list yields ErrConflict.
func (s *UserService) AddFavorite(userID, skID string) error {
	if _, err := s.skRepo.GetByID(skID); err != nil {
		if errors.Is(err, repositories.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to look up secret key: %w", err)
	}

	// A valid token can outlive its account (self-delete); report the missing
	// user distinctly from the missing key.
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, repositories.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if user.HasFavorite(skID) {
		return fmt.Errorf("secret key %s: %w", skID, ErrConflict)
	}

	user.FavSK = append(user.FavSK, models.FavoriteKey{
		SkID:    skID,
		AddedAt: models.Timestamp(),
	})
	if err := s.userRepo.Update(user); err != nil {
		return fmt.Errorf("failed to save favorites: %w", err)
	}
	return nil
}
