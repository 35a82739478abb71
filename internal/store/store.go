package store

import (
	"context"
	"errors"
	"time"

	"github.com/ramevans/Medical-Platform/internal/models"
)

var (
	// ErrInvalidLimit is returned when a paginated query is given a
	// non-positive limit.
	ErrInvalidLimit = errors.New("limit must be greater than zero")

	// ErrNotFound is returned by update operations targeting a record that
	// does not exist. Get operations signal absence with (nil, nil) instead.
	ErrNotFound = errors.New("record not found")
)

// DataStore defines the interface for relational storage of devices, device
// readings, users and roles. Both PostgresStore and SQLiteStore implement
// this interface. Get methods return (nil, nil) when the record does not
// exist.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Device operations
	CreateDevice(ctx context.Context, device *models.Device) (*models.Device, error)
	GetDevice(ctx context.Context, deviceID int64) (*models.Device, error)
	ListDevices(ctx context.Context) ([]models.Device, error)
	UpdateDevice(ctx context.Context, device *models.Device) (*models.Device, error)
	DeleteDevice(ctx context.Context, deviceID int64) (bool, error)

	// Reading operations. Readings are an append-only log: there is no
	// update or delete.
	CreateReadings(ctx context.Context, readings []models.Reading) ([]models.Reading, error)
	ListReadings(ctx context.Context) ([]models.Reading, error)

	// User operations
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsersByRole(ctx context.Context, roleName string) ([]models.User, error)
	UpdateUser(ctx context.Context, user *models.User) (*models.User, error)
	DeleteUser(ctx context.Context, userID int64) (bool, error)

	// Role operations. Roles are never deleted; existing users may
	// reference them indefinitely.
	CreateUserRole(ctx context.Context, roleName string) (*models.UserRole, error)
	GetUserRole(ctx context.Context, roleID int64) (*models.UserRole, error)
	ListUserRoles(ctx context.Context) ([]models.UserRole, error)
	UpdateUserRole(ctx context.Context, role *models.UserRole) (*models.UserRole, error)

	// Aggregates for the stats endpoint
	CountDevices(ctx context.Context) (int64, error)
	CountUsers(ctx context.Context) (int64, error)
	CountReadingsByKind(ctx context.Context) (map[models.ReadingKind]int64, error)
	LatestReadingTime(ctx context.Context) (*time.Time, error)
}
