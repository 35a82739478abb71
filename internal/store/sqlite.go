package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ramevans/Medical-Platform/internal/models"
)

// SQLiteStore handles SQLite database operations. It implements the same
// DataStore interface as PostgresStore so a deployment can run without a
// database server.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/medops.db".
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/medops.db"
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	// Every pooled connection to :memory: would get its own database
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS devices (
		device_id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL,
		current_firmware_version TEXT,
		date_of_purchase DATETIME,
		serial_number TEXT,
		mac_address TEXT
	);

	CREATE TABLE IF NOT EXISTS readings (
		reading_id INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id INTEGER NOT NULL,
		assigned_user INTEGER NOT NULL,
		received_time DATETIME NOT NULL,
		collection_time DATETIME NOT NULL,
		kind TEXT NOT NULL,
		payload TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_readings_collection_time ON readings(collection_time);

	CREATE TABLE IF NOT EXISTS user_roles (
		role_id INTEGER PRIMARY KEY AUTOINCREMENT,
		role_name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		user_id INTEGER PRIMARY KEY AUTOINCREMENT,
		dob DATETIME NOT NULL,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS user_role_members (
		user_id INTEGER NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
		role_id INTEGER NOT NULL REFERENCES user_roles(role_id),
		PRIMARY KEY (user_id, role_id)
	);

	CREATE TABLE IF NOT EXISTS user_relationships (
		patient_id INTEGER NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
		staff_id INTEGER NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
		PRIMARY KEY (patient_id, staff_id)
	);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateDevice creates a new device record.
func (s *SQLiteStore) CreateDevice(ctx context.Context, device *models.Device) (*models.Device, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO devices (name, current_firmware_version, date_of_purchase, serial_number, mac_address)
		VALUES (?, ?, ?, ?, ?)
	`, device.Name, device.CurrentFirmwareVersion, device.DateOfPurchase, device.SerialNumber, device.MACAddress)
	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetDevice(ctx, id)
}

// GetDevice retrieves a device by ID.
func (s *SQLiteStore) GetDevice(ctx context.Context, deviceID int64) (*models.Device, error) {
	device := &models.Device{}
	err := s.db.QueryRowContext(ctx, `
		SELECT device_id, name, current_firmware_version, date_of_purchase, serial_number, mac_address
		FROM devices WHERE device_id = ?
	`, deviceID).Scan(
		&device.DeviceID,
		&device.Name,
		&device.CurrentFirmwareVersion,
		&device.DateOfPurchase,
		&device.SerialNumber,
		&device.MACAddress,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return device, nil
}

// ListDevices retrieves all registered devices.
func (s *SQLiteStore) ListDevices(ctx context.Context) ([]models.Device, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT device_id, name, current_firmware_version, date_of_purchase, serial_number, mac_address
		FROM devices ORDER BY device_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []models.Device
	for rows.Next() {
		var device models.Device
		err := rows.Scan(
			&device.DeviceID,
			&device.Name,
			&device.CurrentFirmwareVersion,
			&device.DateOfPurchase,
			&device.SerialNumber,
			&device.MACAddress,
		)
		if err != nil {
			return nil, err
		}
		devices = append(devices, device)
	}
	return devices, rows.Err()
}

// UpdateDevice updates an existing device.
func (s *SQLiteStore) UpdateDevice(ctx context.Context, device *models.Device) (*models.Device, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE devices
		SET name = ?, current_firmware_version = ?, date_of_purchase = ?, serial_number = ?, mac_address = ?
		WHERE device_id = ?
	`, device.Name, device.CurrentFirmwareVersion, device.DateOfPurchase, device.SerialNumber, device.MACAddress, device.DeviceID)
	if err != nil {
		return nil, err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return s.GetDevice(ctx, device.DeviceID)
}

// DeleteDevice deletes a device. Returns false if it did not exist.
func (s *SQLiteStore) DeleteDevice(ctx context.Context, deviceID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM devices WHERE device_id = ?`, deviceID)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateReadings appends a batch of device readings in a single transaction.
func (s *SQLiteStore) CreateReadings(ctx context.Context, readings []models.Reading) ([]models.Reading, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	created := make([]models.Reading, 0, len(readings))
	for _, reading := range readings {
		payload, err := models.EncodeReadingValue(reading.Value)
		if err != nil {
			return nil, fmt.Errorf("encode %s reading: %w", reading.Kind, err)
		}

		result, err := tx.ExecContext(ctx, `
			INSERT INTO readings (device_id, assigned_user, received_time, collection_time, kind, payload)
			VALUES (?, ?, ?, ?, ?, ?)
		`, reading.DeviceID, reading.AssignedUser, reading.ReceivedTime, reading.CollectionTime, string(reading.Kind), string(payload))
		if err != nil {
			return nil, err
		}

		reading.ReadingID, err = result.LastInsertId()
		if err != nil {
			return nil, err
		}
		created = append(created, reading)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return created, nil
}

// ListReadings retrieves all readings ordered by collection time.
func (s *SQLiteStore) ListReadings(ctx context.Context) ([]models.Reading, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT reading_id, device_id, assigned_user, received_time, collection_time, kind, payload
		FROM readings ORDER BY collection_time
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []models.Reading
	for rows.Next() {
		var reading models.Reading
		var kind string
		var payload string
		err := rows.Scan(
			&reading.ReadingID,
			&reading.DeviceID,
			&reading.AssignedUser,
			&reading.ReceivedTime,
			&reading.CollectionTime,
			&kind,
			&payload,
		)
		if err != nil {
			return nil, err
		}
		reading.Kind = models.ReadingKind(kind)
		reading.Value, err = models.DecodeReadingValue(reading.Kind, []byte(payload))
		if err != nil {
			return nil, err
		}
		readings = append(readings, reading)
	}
	return readings, rows.Err()
}

// CreateUser creates a user along with its role and relationship records.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO users (dob, first_name, last_name, email, password_hash)
		VALUES (?, ?, ?, ?, ?)
	`, user.DOB, user.FirstName, user.LastName, user.Email, user.PasswordHash)
	if err != nil {
		return nil, err
	}

	userID, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	if err := insertUserRelations(ctx, tx, userID, user); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetUser(ctx, userID)
}

// GetUser retrieves a user by ID, including roles and relationships.
func (s *SQLiteStore) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	return s.getUser(ctx, `WHERE user_id = ?`, userID)
}

// GetUserByEmail retrieves a user by email address.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, `WHERE email = ?`, email)
}

func (s *SQLiteStore) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, dob, first_name, last_name, email, password_hash
		FROM users `+where,
		arg).Scan(
		&user.UserID,
		&user.DOB,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.PasswordHash,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if err := s.loadUserRelations(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ListUsersByRole retrieves all users holding the named role. An empty role
// name lists every user.
func (s *SQLiteStore) ListUsersByRole(ctx context.Context, roleName string) ([]models.User, error) {
	query := `
		SELECT user_id, dob, first_name, last_name, email, password_hash
		FROM users ORDER BY user_id
	`
	args := []any{}
	if roleName != "" {
		query = `
			SELECT u.user_id, u.dob, u.first_name, u.last_name, u.email, u.password_hash
			FROM users u
			JOIN user_role_members m ON m.user_id = u.user_id
			JOIN user_roles r ON r.role_id = m.role_id
			WHERE r.role_name = ?
			ORDER BY u.user_id
		`
		args = append(args, roleName)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		err := rows.Scan(
			&user.UserID,
			&user.DOB,
			&user.FirstName,
			&user.LastName,
			&user.Email,
			&user.PasswordHash,
		)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range users {
		if err := s.loadUserRelations(ctx, &users[i]); err != nil {
			return nil, err
		}
	}
	return users, nil
}

// UpdateUser updates a user's fields and reconciles its role and
// relationship records.
func (s *SQLiteStore) UpdateUser(ctx context.Context, user *models.User) (*models.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE users SET dob = ?, first_name = ?, last_name = ?, email = ?, password_hash = ?
		WHERE user_id = ?
	`, user.DOB, user.FirstName, user.LastName, user.Email, user.PasswordHash, user.UserID)
	if err != nil {
		return nil, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_role_members WHERE user_id = ?`, user.UserID); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM user_relationships WHERE patient_id = ? OR staff_id = ?
	`, user.UserID, user.UserID); err != nil {
		return nil, err
	}

	if err := insertUserRelations(ctx, tx, user.UserID, user); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetUser(ctx, user.UserID)
}

// DeleteUser deletes a user. Role memberships and relationships cascade.
func (s *SQLiteStore) DeleteUser(ctx context.Context, userID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE user_id = ?`, userID)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateUserRole creates a new user role.
func (s *SQLiteStore) CreateUserRole(ctx context.Context, roleName string) (*models.UserRole, error) {
	result, err := s.db.ExecContext(ctx, `INSERT INTO user_roles (role_name) VALUES (?)`, roleName)
	if err != nil {
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetUserRole(ctx, id)
}

// GetUserRole retrieves a role by ID.
func (s *SQLiteStore) GetUserRole(ctx context.Context, roleID int64) (*models.UserRole, error) {
	role := &models.UserRole{}
	err := s.db.QueryRowContext(ctx, `
		SELECT role_id, role_name FROM user_roles WHERE role_id = ?
	`, roleID).Scan(&role.RoleID, &role.RoleName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return role, nil
}

// ListUserRoles retrieves all roles.
func (s *SQLiteStore) ListUserRoles(ctx context.Context) ([]models.UserRole, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT role_id, role_name FROM user_roles ORDER BY role_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []models.UserRole
	for rows.Next() {
		var role models.UserRole
		if err := rows.Scan(&role.RoleID, &role.RoleName); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// UpdateUserRole renames an existing role.
func (s *SQLiteStore) UpdateUserRole(ctx context.Context, role *models.UserRole) (*models.UserRole, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE user_roles SET role_name = ? WHERE role_id = ?
	`, role.RoleName, role.RoleID)
	if err != nil {
		return nil, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return s.GetUserRole(ctx, role.RoleID)
}

// CountDevices returns the number of registered devices.
func (s *SQLiteStore) CountDevices(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM devices`).Scan(&count)
	return count, err
}

// CountUsers returns the number of registered users.
func (s *SQLiteStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// CountReadingsByKind returns per-kind reading totals.
func (s *SQLiteStore) CountReadingsByKind(ctx context.Context) (map[models.ReadingKind]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM readings GROUP BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.ReadingKind]int64)
	for rows.Next() {
		var kind models.ReadingKind
		var count int64
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		counts[kind] = count
	}
	return counts, rows.Err()
}

// LatestReadingTime returns the received time of the most recent reading,
// or nil when none have been ingested.
func (s *SQLiteStore) LatestReadingTime(ctx context.Context) (*time.Time, error) {
	var ts sql.NullTime
	err := s.db.QueryRowContext(ctx, `SELECT MAX(received_time) FROM readings`).Scan(&ts)
	if err != nil {
		return nil, err
	}
	if !ts.Valid {
		return nil, nil
	}
	return &ts.Time, nil
}

// insertUserRelations writes a user's role memberships and relationships.
func insertUserRelations(ctx context.Context, tx *sql.Tx, userID int64, user *models.User) error {
	for _, role := range user.Roles {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_role_members (user_id, role_id) VALUES (?, ?)
		`, userID, role.RoleID); err != nil {
			return err
		}
	}

	for _, patientID := range user.Patients {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_relationships (patient_id, staff_id) VALUES (?, ?)
		`, patientID, userID); err != nil {
			return err
		}
	}
	for _, staffID := range user.MedicalStaff {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_relationships (patient_id, staff_id) VALUES (?, ?)
		`, userID, staffID); err != nil {
			return err
		}
	}
	return nil
}

// loadUserRelations fills in a user's roles, patients and medical staff.
func (s *SQLiteStore) loadUserRelations(ctx context.Context, user *models.User) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.role_id, r.role_name
		FROM user_roles r
		JOIN user_role_members m ON m.role_id = r.role_id
		WHERE m.user_id = ?
		ORDER BY r.role_id
	`, user.UserID)
	if err != nil {
		return err
	}
	defer rows.Close()

	user.Roles = []models.UserRole{}
	for rows.Next() {
		var role models.UserRole
		if err := rows.Scan(&role.RoleID, &role.RoleName); err != nil {
			return err
		}
		user.Roles = append(user.Roles, role)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	user.Patients, err = s.queryIDs(ctx, `
		SELECT patient_id FROM user_relationships WHERE staff_id = ? ORDER BY patient_id
	`, user.UserID)
	if err != nil {
		return err
	}

	user.MedicalStaff, err = s.queryIDs(ctx, `
		SELECT staff_id FROM user_relationships WHERE patient_id = ? ORDER BY staff_id
	`, user.UserID)
	return err
}

// queryIDs collects a single-column id result set.
func (s *SQLiteStore) queryIDs(ctx context.Context, query string, arg any) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
