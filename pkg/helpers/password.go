package helpers

import "golang.org/x/crypto/bcrypt"

// passwordCost is the bcrypt work factor for new hashes. Verification reads
// the cost embedded in the digest, so raising this later does not invalidate
// hashes already stored.
const passwordCost = 10

// HashPassword hashes the plain text password using bcrypt.
func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), passwordCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CompareHashAndPassword compares a bcrypt hash with a plain password.
func CompareHashAndPassword(hash string, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
