package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// UserRole is a role that can be assigned to users (e.g. "patient",
// "doctor"). Role names are free-form; the system only matches on role ids.
type UserRole struct {
	RoleID   int64  `json:"role_id"`
	RoleName string `json:"role_name"`
}

// User represents a patient or a medical professional. Patients and
// MedicalStaff hold related user ids: a patient's medical staff are the
// providers treating them, and vice versa.
type User struct {
	UserID       int64      `json:"user_id"`
	DOB          time.Time  `json:"dob"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Roles        []UserRole `json:"roles"`
	Patients     []int64    `json:"patients"`
	MedicalStaff []int64    `json:"medical_staff"`
}

// HashPassword derives the stored hash for a plaintext password. The hash is
// opaque to the rest of the system; only VerifyPassword can interpret it.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether the plaintext password matches the stored
// hash.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
