package repositories

import "skgvault/internal/models"

// SecretKeyRepository defines the interface for secret key data access.
type SecretKeyRepository interface {
	Create(key *models.SecretKey) error
	GetByID(id string) (*models.SecretKey, error)
	GetByUserID(userID string) ([]models.SecretKey, error)
	Update(key *models.SecretKey) error
	Delete(id string) error
}
