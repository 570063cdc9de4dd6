package repositories

import (
	"sync"

	"skgvault/internal/models"

	"github.com/google/uuid"
)

// MockSecretKeyRepository is an in-memory implementation of SecretKeyRepository.
type MockSecretKeyRepository struct {
	keys map[string]models.SecretKey
	mu   sync.RWMutex
}

// NewMockSecretKeyRepository creates a new instance of MockSecretKeyRepository.
func NewMockSecretKeyRepository() *MockSecretKeyRepository {
	return &MockSecretKeyRepository{
		keys: make(map[string]models.SecretKey),
	}
}

// Create adds a new secret key.
func (r *MockSecretKeyRepository) Create(key *models.SecretKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if key.ID == "" {
		key.ID = uuid.New().String()
	}
	r.keys[key.ID] = *key
	return nil
}

// GetByID returns a secret key by its ID.
func (r *MockSecretKeyRepository) GetByID(id string) (*models.SecretKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key, ok := r.keys[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &key, nil
}

// GetByUserID returns every secret key owned by the given user.
func (r *MockSecretKeyRepository) GetByUserID(userID string) ([]models.SecretKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keyList := make([]models.SecretKey, 0)
	for _, k := range r.keys {
		if k.UserID == userID {
			keyList = append(keyList, k)
		}
	}
	return keyList, nil
}

// Update modifies an existing secret key.
func (r *MockSecretKeyRepository) Update(key *models.SecretKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.keys[key.ID]
	if !ok {
		return ErrRecordNotFound
	}
	r.keys[key.ID] = *key
	return nil
}

// Delete removes a secret key by its ID.
func (r *MockSecretKeyRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.keys[id]
	if !ok {
		return ErrRecordNotFound
	}
	delete(r.keys, id)
	return nil
}
