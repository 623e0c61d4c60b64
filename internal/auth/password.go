package auth

import "golang.org/x/crypto/bcrypt"

// bcryptCost of 8 keeps login fast on the small field servers
const bcryptCost = 8

// HashSecret generates a bcrypt hash of the secret
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifySecret checks if the provided secret matches the hash
func VerifySecret(hashedSecret, secret string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedSecret), []byte(secret))
	return err == nil
}
