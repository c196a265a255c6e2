package auth

import "golang.org/x/crypto/bcrypt"

// referenceHash is a bcrypt hash of a throwaway value. Authenticate compares
// against it when the username is unknown so that unknown-user and
// wrong-password failures cost the same amount of work.
const referenceHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// HashPassword produces a salted bcrypt hash of the plaintext. Each call
// salts freshly, so hashing the same password twice yields different output.
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares a plaintext candidate against a stored bcrypt
// hash. A wrong password or a malformed hash both return false; this never
// panics or errors out.
func VerifyPassword(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// verifyReference burns one bcrypt comparison against the reference hash.
// The result is always discarded.
func verifyReference(plaintext string) {
	_ = bcrypt.CompareHashAndPassword([]byte(referenceHash), []byte(plaintext))
}
