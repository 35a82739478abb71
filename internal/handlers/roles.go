package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ramevans/Medical-Platform/internal/models"
)

// RoleRequest represents a create or update role request body.
type RoleRequest struct {
	RoleName string `json:"role_name"`
}

// ListRoles handles listing all user roles.
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.db.ListUserRoles(r.Context())
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to list roles")
		return
	}
	h.JSON(w, http.StatusOK, roles)
}

// CreateRole handles creating a new user role.
func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req RoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.RoleName == "" {
		h.ErrorList(w, http.StatusUnprocessableEntity, []string{"Missing required field: role_name"})
		return
	}

	role, err := h.db.CreateUserRole(r.Context(), req.RoleName)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to create role")
		return
	}
	h.JSON(w, http.StatusCreated, role)
}

// GetRole handles fetching a single role by id.
func (h *Handler) GetRole(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "roleID"), 10, 64)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid role id")
		return
	}

	role, err := h.db.GetUserRole(r.Context(), id)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch role")
		return
	}
	if role == nil {
		h.Error(w, http.StatusNotFound, "role not found")
		return
	}
	h.JSON(w, http.StatusOK, role)
}

// UpdateRole handles renaming an existing role.
func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "roleID"), 10, 64)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid role id")
		return
	}

	existing, err := h.db.GetUserRole(r.Context(), id)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch role")
		return
	}
	if existing == nil {
		h.Error(w, http.StatusNotFound, "role not found")
		return
	}

	var req RoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.RoleName == "" {
		h.ErrorList(w, http.StatusUnprocessableEntity, []string{"Missing required field: role_name"})
		return
	}

	role, err := h.db.UpdateUserRole(r.Context(), &models.UserRole{RoleID: id, RoleName: req.RoleName})
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to update role")
		return
	}
	h.JSON(w, http.StatusOK, role)
}
