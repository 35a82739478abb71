package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ramevans/Medical-Platform/internal/models"
)

// UserRequest represents a create or update user request body. Roles are
// given by id; patients and medical_staff by user id.
type UserRequest struct {
	DOB          string  `json:"dob"`
	FirstName    string  `json:"first_name"`
	LastName     string  `json:"last_name"`
	Email        string  `json:"email"`
	Password     string  `json:"password"`
	Roles        []int64 `json:"roles"`
	Patients     []int64 `json:"patients"`
	MedicalStaff []int64 `json:"medical_staff"`
}

// LoginRequest represents a login request body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// validate checks field-level constraints and resolves the request into a
// User. Role and relationship references are resolved separately since
// they need the store.
func (req *UserRequest) validate() (*models.User, []string) {
	var errs []string

	if req.FirstName == "" {
		errs = append(errs, "Missing required field: first_name")
	}
	if req.LastName == "" {
		errs = append(errs, "Missing required field: last_name")
	}
	if req.Email == "" {
		errs = append(errs, "Missing required field: email")
	} else if !isValidEmail(req.Email) {
		errs = append(errs, fmt.Sprintf("Invalid email address: %s", req.Email))
	}

	var dob time.Time
	if req.DOB == "" {
		errs = append(errs, "Missing required field: dob")
	} else {
		parsed, err := time.Parse("2006-01-02", req.DOB)
		if err != nil {
			errs = append(errs, fmt.Sprintf("Invalid dob, expected YYYY-MM-DD: %s", req.DOB))
		} else {
			dob = parsed
		}
	}

	if errs != nil {
		return nil, errs
	}

	return &models.User{
		DOB:          dob,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Patients:     req.Patients,
		MedicalStaff: req.MedicalStaff,
	}, nil
}

// resolveReferences verifies every referenced role and user exists, filling
// user.Roles from the role ids as it goes.
func (h *Handler) resolveReferences(r *http.Request, roleIDs []int64, user *models.User) []string {
	var errs []string

	user.Roles = nil
	for _, roleID := range roleIDs {
		role, err := h.db.GetUserRole(r.Context(), roleID)
		if err != nil {
			errs = append(errs, fmt.Sprintf("Error looking up role %d", roleID))
			continue
		}
		if role == nil {
			errs = append(errs, fmt.Sprintf("Role does not exist: %d", roleID))
			continue
		}
		user.Roles = append(user.Roles, *role)
	}

	for _, id := range append(append([]int64{}, user.Patients...), user.MedicalStaff...) {
		other, err := h.db.GetUser(r.Context(), id)
		if err != nil {
			errs = append(errs, fmt.Sprintf("Error looking up user %d", id))
			continue
		}
		if other == nil {
			errs = append(errs, fmt.Sprintf("User does not exist: %d", id))
		}
	}
	return errs
}

// ListUsers handles listing users, optionally filtered by email or role
// name.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if email := r.URL.Query().Get("email"); email != "" {
		user, err := h.db.GetUserByEmail(r.Context(), email)
		if err != nil {
			h.Error(w, http.StatusInternalServerError, "failed to query users")
			return
		}
		users := []models.User{}
		if user != nil {
			users = append(users, *user)
		}
		h.JSON(w, http.StatusOK, users)
		return
	}

	users, err := h.db.ListUsersByRole(r.Context(), r.URL.Query().Get("role"))
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []models.User{}
	}
	h.JSON(w, http.StatusOK, users)
}

// CreateUser handles user registration.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req UserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, errs := req.validate()
	if req.Password == "" {
		errs = append(errs, "Missing required field: password")
	}
	if errs != nil {
		h.ErrorList(w, http.StatusUnprocessableEntity, errs)
		return
	}

	existing, err := h.db.GetUserByEmail(r.Context(), user.Email)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to check email")
		return
	}
	if existing != nil {
		h.Error(w, http.StatusConflict, "a user with this email already exists")
		return
	}

	if errs := h.resolveReferences(r, req.Roles, user); errs != nil {
		h.ErrorList(w, http.StatusUnprocessableEntity, errs)
		return
	}

	hash, err := models.HashPassword(req.Password)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to hash password")
		return
	}
	user.PasswordHash = hash

	created, err := h.db.CreateUser(r.Context(), user)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to create user")
		return
	}
	h.JSON(w, http.StatusCreated, created)
}

// GetUser handles fetching a single user by id.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := h.db.GetUser(r.Context(), id)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch user")
		return
	}
	if user == nil {
		h.Error(w, http.StatusNotFound, "user not found")
		return
	}
	h.JSON(w, http.StatusOK, user)
}

// UpdateUser handles replacing a user's profile, roles, and relationships.
// The password only changes when the request carries one.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	existing, err := h.db.GetUser(r.Context(), id)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch user")
		return
	}
	if existing == nil {
		h.Error(w, http.StatusNotFound, "user not found")
		return
	}

	var req UserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, errs := req.validate()
	if errs != nil {
		h.ErrorList(w, http.StatusUnprocessableEntity, errs)
		return
	}
	user.UserID = id
	user.PasswordHash = existing.PasswordHash

	if user.Email != existing.Email {
		other, err := h.db.GetUserByEmail(r.Context(), user.Email)
		if err != nil {
			h.Error(w, http.StatusInternalServerError, "failed to check email")
			return
		}
		if other != nil {
			h.Error(w, http.StatusConflict, "a user with this email already exists")
			return
		}
	}

	if errs := h.resolveReferences(r, req.Roles, user); errs != nil {
		h.ErrorList(w, http.StatusUnprocessableEntity, errs)
		return
	}

	if req.Password != "" {
		hash, err := models.HashPassword(req.Password)
		if err != nil {
			h.Error(w, http.StatusInternalServerError, "failed to hash password")
			return
		}
		user.PasswordHash = hash
	}

	updated, err := h.db.UpdateUser(r.Context(), user)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to update user")
		return
	}
	h.JSON(w, http.StatusOK, updated)
}

// DeleteUser handles deleting a user.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	deleted, err := h.db.DeleteUser(r.Context(), id)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to delete user")
		return
	}
	if !deleted {
		h.Error(w, http.StatusNotFound, "user not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Login handles credential verification. It returns the matched user on
// success and 401 otherwise.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		h.Error(w, http.StatusUnprocessableEntity, "email and password are required")
		return
	}

	user, err := h.db.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch user")
		return
	}
	if user == nil || !models.VerifyPassword(user.PasswordHash, req.Password) {
		h.Error(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	h.JSON(w, http.StatusOK, user)
}
