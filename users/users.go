package users

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// CollectionName is where accounts are stored, one document per account.
const CollectionName = "accounts"

// ProviderEmail is the identity binding used by email and password sign-up.
const ProviderEmail = "email"

type Account struct {
	ID           string            `bson:"_id" json:"id"`                                        // Time-ordered unique identifier (UUIDv7)
	Name         string            `bson:"name" json:"name"`                                     // Display name
	Email        string            `bson:"email,omitempty" json:"email,omitempty"`               // Contact email from the provider or sign-up
	PasswordHash string            `bson:"password_hash,omitempty" json:"-"`                     // Hashed version of the user's password - never serialize
	Identities   map[string]string `bson:"identities,omitempty" json:"identities,omitempty"`     // Provider name to provider subject
	Picture      string            `bson:"picture,omitempty" json:"picture,omitempty"`           // Avatar reference
	Active       bool              `bson:"active" json:"active"`                                 // Inactive accounts cannot sign in
	CustomerID   string            `bson:"customer_id,omitempty" json:"customer_id,omitempty"`   // Payment gateway customer
	Subscription string            `bson:"subscription_id,omitempty" json:"subscription_id,omitempty"`
	CreatedAt    time.Time         `bson:"created_at" json:"created_at"`
	LastLogin    time.Time         `bson:"last_login,omitempty" json:"last_login,omitempty"`
}

func (Account) CollectionName() string { return CollectionName }
func (a Account) DocumentID() string   { return a.ID }

// IdentityField is the stored path of the binding for provider.
func IdentityField(provider string) string {
	return "identities." + provider
}

// Subject returns the provider subject bound to the account, if any.
func (a *Account) Subject(provider string) (string, bool) {
	subject, ok := a.Identities[provider]
	return subject, ok && subject != ""
}

// Profile is the provider-supplied data copied onto a new account.
type Profile struct {
	Name    string
	Email   string
	Picture string
}

// NormalizeEmail is applied to every email before it is stored or looked up.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
