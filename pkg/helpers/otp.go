package helpers

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"math/big"
	"strconv"
)

// One-time codes are short-lived and emailed in plaintext, so they are stored
// as a fast SHA-256 digest rather than the slow password hash.

var otpRange = big.NewInt(900000)

// GenOTPCode generates a uniformly random 6-digit code in [100000, 999999].
func GenOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, otpRange)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+100000, 10), nil
}

// HashOTPCode returns the hex SHA-256 digest of a code.
func HashOTPCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// VerifyOTPCode compares a submitted code against a stored digest in
// constant time.
func VerifyOTPCode(code, storedDigest string) bool {
	digest := HashOTPCode(code)
	return subtle.ConstantTimeCompare([]byte(digest), []byte(storedDigest)) == 1
}
