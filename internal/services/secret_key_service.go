package services

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"skgvault/internal/models"
	"skgvault/internal/repositories"
	"skgvault/pkg/rabbitmq"
)

const secretKeyBytes = 32

// SecretKeyService handles business logic for owner-scoped secret keys.
type SecretKeyService struct {
	repo     repositories.SecretKeyRepository
	mqClient *rabbitmq.Client
}

// NewSecretKeyService creates a new SecretKeyService.
func NewSecretKeyService(repo repositories.SecretKeyRepository, mqClient *rabbitmq.Client) *SecretKeyService {
	return &SecretKeyService{
		repo:     repo,
		mqClient: mqClient,
	}
}

// Generate returns a fresh 64-character hex secret. Nothing is persisted.
func (s *SecretKeyService) Generate() (string, error) {
	buf := make([]byte, secretKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate secret key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Create generates a new secret and persists it under the given owner.
func (s *SecretKeyService) Create(ownerID, title string) (*models.SecretKey, error) {
	secret, err := s.Generate()
	if err != nil {
		return nil, err
	}

	key := &models.SecretKey{
		Title:     title,
		Secret:    secret,
		UserID:    ownerID,
		CreatedAt: models.Timestamp(),
	}
	if err := s.repo.Create(key); err != nil {
		return nil, fmt.Errorf("failed to create secret key: %w", err)
	}

	s.publishEvent("secretkey.created", key.ID, ownerID)
	return key, nil
}

// ListByOwner returns the secret keys owned by the given user.
func (s *SecretKeyService) ListByOwner(ownerID string) ([]models.SecretKey, error) {
	return s.repo.GetByUserID(ownerID)
}

// Get returns a secret key after the existence and ownership checks.
// A record owned by someone else yields ErrForbidden, not ErrNotFound.
func (s *SecretKeyService) Get(id, ownerID string) (*models.SecretKey, error) {
	key, err := s.repo.GetByID(id)
	if err != nil {
		if errors.Is(err, repositories.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get secret key: %w", err)
	}
	if key.UserID != ownerID {
		return nil, ErrForbidden
	}
	return key, nil
}

// UpdateTitle changes a key's title after the same checks as Get.
// The secret value itself is immutable.
func (s *SecretKeyService) UpdateTitle(id, ownerID, title string) (*models.SecretKey, error) {
	key, err := s.Get(id, ownerID)
	if err != nil {
		return nil, err
	}

	key.Title = title
	if err := s.repo.Update(key); err != nil {
		return nil, fmt.Errorf("failed to update secret key: %w", err)
	}
	return key, nil
}

// Delete removes a key after the same checks as Get.
func (s *SecretKeyService) Delete(id, ownerID string) error {
	if _, err := s.Get(id, ownerID); err != nil {
		return err
	}
	if err := s.repo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete secret key: %w", err)
	}

	s.publishEvent("secretkey.deleted", id, ownerID)
	return nil
}

func (s *SecretKeyService) publishEvent(routingKey, keyID, ownerID string) {
	if s.mqClient == nil {
		return
	}
	body, err := json.Marshal(map[string]interface{}{
		"secretKeyID": keyID,
		"userID":      ownerID,
	})
	if err != nil {
		log.Printf("Failed to marshal %s event: %v", routingKey, err)
		return
	}
	if err := s.mqClient.Publish(routingKey, body); err != nil {
		log.Printf("Warning: failed to publish %s event: %v", routingKey, err)
	}
}
