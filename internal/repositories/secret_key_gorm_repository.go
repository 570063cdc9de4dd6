package repositories

import (
	"errors"
	"fmt"

	"skgvault/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMSecretKeyRepository is a GORM implementation of SecretKeyRepository.
type GORMSecretKeyRepository struct {
	db *gorm.DB
}

// NewGORMSecretKeyRepository creates a new instance of GORMSecretKeyRepository.
func NewGORMSecretKeyRepository(db *gorm.DB) *GORMSecretKeyRepository {
	return &GORMSecretKeyRepository{
		db: db,
	}
}

// Create inserts a new secret key, assigning an id when none is set.
func (r *GORMSecretKeyRepository) Create(key *models.SecretKey) error {
	if key.ID == "" {
		key.ID = uuid.New().String()
	}
	if err := r.db.Create(key).Error; err != nil {
		return fmt.Errorf("failed to create secret key: %w", err)
	}
	return nil
}

// GetByID retrieves a secret key by its ID.
func (r *GORMSecretKeyRepository) GetByID(id string) (*models.SecretKey, error) {
	var key models.SecretKey
	if err := r.db.First(&key, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get secret key by ID %s: %w", id, err)
	}
	return &key, nil
}

// GetByUserID returns every secret key owned by the given user.
func (r *GORMSecretKeyRepository) GetByUserID(userID string) ([]models.SecretKey, error) {
	var keys []models.SecretKey
	if err := r.db.Find(&keys, "user_id = ?", userID).Error; err != nil {
		return nil, fmt.Errorf("failed to list secret keys for user %s: %w", userID, err)
	}
	return keys, nil
}

// Update saves the full secret key record.
func (r *GORMSecretKeyRepository) Update(key *models.SecretKey) error {
	if err := r.db.Save(key).Error; err != nil {
		return fmt.Errorf("failed to update secret key %s: %w", key.ID, err)
	}
	return nil
}

// Delete removes a secret key by its ID.
func (r *GORMSecretKeyRepository) Delete(id string) error {
	if err := r.db.Delete(&models.SecretKey{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete secret key %s: %w", id, err)
	}
	return nil
}
