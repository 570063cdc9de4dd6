package models

// SecretKey is an owner-scoped secret: 32 cryptographically random bytes,
// hex encoded, labelled with a user-supplied title. The Secret value is
// immutable after creation; updates touch the title only.
type SecretKey struct {
	ID        string `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Title     string `json:"title" gorm:"type:varchar(200)" validate:"required,min=1,max=200"`
	Secret    string `json:"secretKey" gorm:"column:secret_key;type:char(64)"`
	UserID    string `json:"userId" gorm:"index;type:varchar(36)"`
	CreatedAt string `json:"createdAt" gorm:"type:varchar(35)"`
}

// TableName keeps the collection name used by every deployment of this API.
func (SecretKey) TableName() string {
	return "secret_keys"
}
