package identity

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/maruel/bgstudio/internal/models"
)

var errPasswordRequired = errors.New("password is required")

// Verifier decides whether a password is valid for a user.
type Verifier interface {
	// Hash returns what to store in User.PasswordHash for a new account.
	Hash(password string) (string, error)
	// Verify reports whether password matches u.
	Verify(u *models.User, password string) bool
}

// AcceptAny accepts every password and stores none.
//
// This is the prototype behaviour: knowing a member's email is enough to sign
// in as them. Use BcryptVerifier for anything beyond local testing.
type AcceptAny struct{}

// Hash implements Verifier.
func (AcceptAny) Hash(string) (string, error) {
	return "", nil
}

// Verify implements Verifier.
func (AcceptAny) Verify(*models.User, string) bool {
	return true
}

// BcryptVerifier stores bcrypt hashes and checks passwords against them.
type BcryptVerifier struct {
	// Cost is the bcrypt cost; 0 means bcrypt.DefaultCost.
	Cost int
}

// Hash implements Verifier.
func (b BcryptVerifier) Hash(password string) (string, error) {
	if password == "" {
		return "", errPasswordRequired
	}
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify implements Verifier. Accounts created without a hash never match.
func (BcryptVerifier) Verify(u *models.User, password string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}
