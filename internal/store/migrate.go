package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// schema is the relational schema for devices, readings, users and roles.
// Statements are idempotent so migrations can run on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS devices (
	device_id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	name TEXT UNIQUE NOT NULL,
	current_firmware_version TEXT,
	date_of_purchase TIMESTAMPTZ,
	serial_number TEXT,
	mac_address TEXT
);

CREATE TABLE IF NOT EXISTS readings (
	reading_id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	device_id BIGINT NOT NULL,
	assigned_user BIGINT NOT NULL,
	received_time TIMESTAMPTZ NOT NULL,
	collection_time TIMESTAMPTZ NOT NULL,
	kind TEXT NOT NULL,
	payload JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_readings_collection_time ON readings(collection_time);
CREATE INDEX IF NOT EXISTS idx_readings_assigned_user ON readings(assigned_user);

CREATE TABLE IF NOT EXISTS user_roles (
	role_id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	role_name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	user_id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	dob DATE NOT NULL,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL,
	email TEXT UNIQUE NOT NULL,
	password_hash TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS user_role_members (
	user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
	role_id BIGINT NOT NULL REFERENCES user_roles(role_id),
	PRIMARY KEY (user_id, role_id)
);

CREATE TABLE IF NOT EXISTS user_relationships (
	patient_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
	staff_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
	PRIMARY KEY (patient_id, staff_id)
);
`

// RunMigrations applies the relational schema to the given database.
func RunMigrations(databaseURL string) error {
	ctx := context.Background()

	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("migration connect: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
