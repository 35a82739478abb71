package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ramevans/Medical-Platform/internal/metrics"
	"github.com/ramevans/Medical-Platform/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// pgxConn is satisfied by both *pgxpool.Pool and pgx.Tx, so helpers can run
// inside or outside a transaction.
type pgxConn interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateDevice creates a new device record.
func (s *PostgresStore) CreateDevice(ctx context.Context, device *models.Device) (*models.Device, error) {
	created := &models.Device{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO devices (name, current_firmware_version, date_of_purchase, serial_number, mac_address)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING device_id, name, current_firmware_version, date_of_purchase, serial_number, mac_address
	`, device.Name, device.CurrentFirmwareVersion, device.DateOfPurchase, device.SerialNumber, device.MACAddress).Scan(
		&created.DeviceID,
		&created.Name,
		&created.CurrentFirmwareVersion,
		&created.DateOfPurchase,
		&created.SerialNumber,
		&created.MACAddress,
	)
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetDevice retrieves a device by ID.
func (s *PostgresStore) GetDevice(ctx context.Context, deviceID int64) (*models.Device, error) {
	device := &models.Device{}
	err := s.pool.QueryRow(ctx, `
		SELECT device_id, name, current_firmware_version, date_of_purchase, serial_number, mac_address
		FROM devices WHERE device_id = $1
	`, deviceID).Scan(
		&device.DeviceID,
		&device.Name,
		&device.CurrentFirmwareVersion,
		&device.DateOfPurchase,
		&device.SerialNumber,
		&device.MACAddress,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return device, nil
}

// ListDevices retrieves all registered devices.
func (s *PostgresStore) ListDevices(ctx context.Context) ([]models.Device, error) {
	rows, err := s.pool.Query(ctx, `
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
func (s *PostgresStore) UpdateDevice(ctx context.Context, device *models.Device) (*models.Device, error) {
	updated := &models.Device{}
	err := s.pool.QueryRow(ctx, `
		UPDATE devices
		SET name = $2, current_firmware_version = $3, date_of_purchase = $4, serial_number = $5, mac_address = $6
		WHERE device_id = $1
		RETURNING device_id, name, current_firmware_version, date_of_purchase, serial_number, mac_address
	`, device.DeviceID, device.Name, device.CurrentFirmwareVersion, device.DateOfPurchase, device.SerialNumber, device.MACAddress).Scan(
		&updated.DeviceID,
		&updated.Name,
		&updated.CurrentFirmwareVersion,
		&updated.DateOfPurchase,
		&updated.SerialNumber,
		&updated.MACAddress,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return updated, nil
}

// DeleteDevice deletes a device. Returns false if it did not exist.
func (s *PostgresStore) DeleteDevice(ctx context.Context, deviceID int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM devices WHERE device_id = $1`, deviceID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CreateReadings appends a batch of device readings in a single transaction.
func (s *PostgresStore) CreateReadings(ctx context.Context, readings []models.Reading) ([]models.Reading, error) {
	start := time.Now()
	defer func() { metrics.PostgresLatency.Observe(time.Since(start).Seconds()) }()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	created := make([]models.Reading, 0, len(readings))
	for _, reading := range readings {
		payload, err := models.EncodeReadingValue(reading.Value)
		if err != nil {
			return nil, fmt.Errorf("encode %s reading: %w", reading.Kind, err)
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO readings (device_id, assigned_user, received_time, collection_time, kind, payload)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING reading_id
		`, reading.DeviceID, reading.AssignedUser, reading.ReceivedTime, reading.CollectionTime, reading.Kind, payload).
			Scan(&reading.ReadingID)
		if err != nil {
			return nil, err
		}
		created = append(created, reading)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

// ListReadings retrieves all readings ordered by collection time.
func (s *PostgresStore) ListReadings(ctx context.Context) ([]models.Reading, error) {
	start := time.Now()
	defer func() { metrics.PostgresLatency.Observe(time.Since(start).Seconds()) }()

	rows, err := s.pool.Query(ctx, `
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
		var payload []byte
		err := rows.Scan(
			&reading.ReadingID,
			&reading.DeviceID,
			&reading.AssignedUser,
			&reading.ReceivedTime,
			&reading.CollectionTime,
			&reading.Kind,
			&payload,
		)
		if err != nil {
			return nil, err
		}
		reading.Value, err = models.DecodeReadingValue(reading.Kind, payload)
		if err != nil {
			return nil, err
		}
		readings = append(readings, reading)
	}
	return readings, rows.Err()
}

// CreateUser creates a user along with its role and relationship records.
func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var userID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO users (dob, first_name, last_name, email, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING user_id
	`, user.DOB, user.FirstName, user.LastName, user.Email, user.PasswordHash).Scan(&userID)
	if err != nil {
		return nil, err
	}

	for _, role := range user.Roles {
		if _, err := tx.Exec(ctx, `
			INSERT INTO user_role_members (user_id, role_id) VALUES ($1, $2)
		`, userID, role.RoleID); err != nil {
			return nil, err
		}
	}

	for _, patientID := range user.Patients {
		if _, err := tx.Exec(ctx, `
			INSERT INTO user_relationships (patient_id, staff_id) VALUES ($1, $2)
		`, patientID, userID); err != nil {
			return nil, err
		}
	}
	for _, staffID := range user.MedicalStaff {
		if _, err := tx.Exec(ctx, `
			INSERT INTO user_relationships (patient_id, staff_id) VALUES ($1, $2)
		`, userID, staffID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.GetUser(ctx, userID)
}

// GetUser retrieves a user by ID, including roles and relationships.
func (s *PostgresStore) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	return s.getUser(ctx, `WHERE user_id = $1`, userID)
}

// GetUserByEmail retrieves a user by email address.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, `WHERE email = $1`, email)
}

func (s *PostgresStore) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
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
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if err := s.loadUserRelations(ctx, s.pool, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ListUsersByRole retrieves all users holding the named role. An empty role
// name lists every user.
func (s *PostgresStore) ListUsersByRole(ctx context.Context, roleName string) ([]models.User, error) {
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
			WHERE r.role_name = $1
			ORDER BY u.user_id
		`
		args = append(args, roleName)
	}

	rows, err := s.pool.Query(ctx, query, args...)
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
		if err := s.loadUserRelations(ctx, s.pool, &users[i]); err != nil {
			return nil, err
		}
	}
	return users, nil
}

// UpdateUser updates a user's fields and reconciles its role and
// relationship records.
func (s *PostgresStore) UpdateUser(ctx context.Context, user *models.User) (*models.User, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE users SET dob = $2, first_name = $3, last_name = $4, email = $5, password_hash = $6
		WHERE user_id = $1
	`, user.UserID, user.DOB, user.FirstName, user.LastName, user.Email, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}

	// Replace role and relationship sets wholesale; the sets are small.
	if _, err := tx.Exec(ctx, `DELETE FROM user_role_members WHERE user_id = $1`, user.UserID); err != nil {
		return nil, err
	}
	for _, role := range user.Roles {
		if _, err := tx.Exec(ctx, `
			INSERT INTO user_role_members (user_id, role_id) VALUES ($1, $2)
		`, user.UserID, role.RoleID); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM user_relationships WHERE patient_id = $1 OR staff_id = $1
	`, user.UserID); err != nil {
		return nil, err
	}
	for _, patientID := range user.Patients {
		if _, err := tx.Exec(ctx, `
			INSERT INTO user_relationships (patient_id, staff_id) VALUES ($1, $2)
		`, patientID, user.UserID); err != nil {
			return nil, err
		}
	}
	for _, staffID := range user.MedicalStaff {
		if _, err := tx.Exec(ctx, `
			INSERT INTO user_relationships (patient_id, staff_id) VALUES ($1, $2)
		`, user.UserID, staffID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.GetUser(ctx, user.UserID)
}

// DeleteUser deletes a user. Role memberships and relationships cascade.
func (s *PostgresStore) DeleteUser(ctx context.Context, userID int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE user_id = $1`, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CreateUserRole creates a new user role.
func (s *PostgresStore) CreateUserRole(ctx context.Context, roleName string) (*models.UserRole, error) {
	role := &models.UserRole{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO user_roles (role_name) VALUES ($1)
		RETURNING role_id, role_name
	`, roleName).Scan(&role.RoleID, &role.RoleName)
	if err != nil {
		return nil, err
	}
	return role, nil
}

// GetUserRole retrieves a role by ID.
func (s *PostgresStore) GetUserRole(ctx context.Context, roleID int64) (*models.UserRole, error) {
	role := &models.UserRole{}
	err := s.pool.QueryRow(ctx, `
		SELECT role_id, role_name FROM user_roles WHERE role_id = $1
	`, roleID).Scan(&role.RoleID, &role.RoleName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return role, nil
}

// ListUserRoles retrieves all roles.
func (s *PostgresStore) ListUserRoles(ctx context.Context) ([]models.UserRole, error) {
	rows, err := s.pool.Query(ctx, `SELECT role_id, role_name FROM user_roles ORDER BY role_id`)
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
func (s *PostgresStore) UpdateUserRole(ctx context.Context, role *models.UserRole) (*models.UserRole, error) {
	updated := &models.UserRole{}
	err := s.pool.QueryRow(ctx, `
		UPDATE user_roles SET role_name = $2 WHERE role_id = $1
		RETURNING role_id, role_name
	`, role.RoleID, role.RoleName).Scan(&updated.RoleID, &updated.RoleName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return updated, nil
}

// CountDevices returns the number of registered devices.
func (s *PostgresStore) CountDevices(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM devices`).Scan(&count)
	return count, err
}

// CountUsers returns the number of registered users.
func (s *PostgresStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// CountReadingsByKind returns per-kind reading totals.
func (s *PostgresStore) CountReadingsByKind(ctx context.Context) (map[models.ReadingKind]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT kind, COUNT(*) FROM readings GROUP BY kind`)
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
func (s *PostgresStore) LatestReadingTime(ctx context.Context) (*time.Time, error) {
	var ts *time.Time
	err := s.pool.QueryRow(ctx, `SELECT MAX(received_time) FROM readings`).Scan(&ts)
	if err != nil {
		return nil, err
	}
	return ts, nil
}

// loadUserRelations fills in a user's roles, patients and medical staff.
func (s *PostgresStore) loadUserRelations(ctx context.Context, conn pgxConn, user *models.User) error {
	rows, err := conn.Query(ctx, `
		SELECT r.role_id, r.role_name
		FROM user_roles r
		JOIN user_role_members m ON m.role_id = r.role_id
		WHERE m.user_id = $1
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

	user.Patients, err = scanIDs(conn.Query(ctx, `
		SELECT patient_id FROM user_relationships WHERE staff_id = $1 ORDER BY patient_id
	`, user.UserID))
	if err != nil {
		return err
	}

	user.MedicalStaff, err = scanIDs(conn.Query(ctx, `
		SELECT staff_id FROM user_relationships WHERE patient_id = $1 ORDER BY staff_id
	`, user.UserID))
	return err
}

// scanIDs collects a single-column id result set.
func scanIDs(rows pgx.Rows, err error) ([]int64, error) {
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
