package service

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashea contrasenas y codigos de recuperacion con bcrypt.
// Acepta hashes SHA-256 heredados y avisa cuando hay que migrarlos.
type PasswordHasher struct {
	cost      int
	dummyHash []byte
}

func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	h := &PasswordHasher{cost: cost}
	seed := make([]byte, 16)
	_, _ = rand.Read(seed)
	h.dummyHash, _ = bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(seed)), cost)
	return h
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify compara password contra hash. needsRehash indica un hash heredado.
func (h *PasswordHasher) Verify(hash, password string) (ok bool, needsRehash bool) {
	if hash == "" {
		return false, false
	}
	if !isBcryptHash(hash) {
		sum := sha256.Sum256([]byte(password))
		legacy := hex.EncodeToString(sum[:])
		if subtle.ConstantTimeCompare([]byte(strings.ToLower(hash)), []byte(legacy)) == 1 {
			return true, true
		}
		return false, false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil, false
}

// CompareDummy consume el mismo tiempo que una verificacion real.
func (h *PasswordHasher) CompareDummy(password string) {
	_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(password))
}

func isBcryptHash(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") ||
		strings.HasPrefix(hash, "$2b$") ||
		strings.HasPrefix(hash, "$2y$")
}

// bcrypt ignora o rechaza lo que pase de 72 bytes.
const maxPasswordBytes = 72

// ValidatePassword exige 8 caracteres, una mayuscula, un digito y un simbolo.
func ValidatePassword(password string) error {
	if len(password) > maxPasswordBytes {
		return ErrPasswordTooLong
	}
	if len([]rune(password)) < 8 {
		return ErrWeakPassword
	}
	var upper, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsLetter(r) && !unicode.IsSpace(r):
			special = true
		}
	}
	if !upper || !digit || !special {
		return ErrWeakPassword
	}
	return nil
}

// ValidateUsername acepta vacio o al menos 3 caracteres [A-Za-z0-9_].
func ValidateUsername(username string) error {
	if username == "" {
		return nil
	}
	if len(username) < 3 {
		return ErrInvalidUsername
	}
	for _, r := range username {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			return ErrInvalidUsername
		}
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

// validEmail hace un chequeo minimo; el formato completo lo valida gin.
func validEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}
