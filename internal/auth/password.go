package auth

import "golang.org/x/crypto/bcrypt"

// hashPassword bcrypt-hashes a plaintext password for storage.
func hashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}

// checkPassword reports whether plain matches the stored bcrypt hash.
func checkPassword(plain, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}
