package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Tables lists every table the engine owns, in creation order.
var Tables = []string{"trips", "bookings", "seat_holds", "loyalty_accounts", "loyalty_transactions", "payment_validations"}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS trips (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		route_from VARCHAR(128) NOT NULL,
		route_to VARCHAR(128) NOT NULL,
		total_seats INT NOT NULL,
		seat_layout TEXT NOT NULL,
		departure_at DATETIME NOT NULL,
		arrival_at DATETIME NULL,
		base_price BIGINT NOT NULL,
		active TINYINT(1) NOT NULL DEFAULT 1,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id CHAR(36) NOT NULL PRIMARY KEY,
		reference VARCHAR(32) NOT NULL,
		trip_id VARCHAR(64) NOT NULL,
		user_id VARCHAR(64) NULL,
		passenger_name VARCHAR(128) NOT NULL,
		passenger_email VARCHAR(191) NULL,
		passenger_phone VARCHAR(32) NULL,
		seats TEXT NOT NULL,
		total_amount BIGINT NOT NULL,
		status VARCHAR(16) NOT NULL,
		payment_status VARCHAR(16) NOT NULL,
		payment_provider VARCHAR(16) NULL,
		payment_reference VARCHAR(128) NULL,
		gateway_status VARCHAR(16) NULL,
		gateway_raw MEDIUMTEXT NULL,
		loyalty_points_earned BIGINT NOT NULL DEFAULT 0,
		loyalty_points_used BIGINT NOT NULL DEFAULT 0,
		ticket TEXT NULL,
		review_reason VARCHAR(255) NULL,
		reminder_sent TINYINT(1) NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE KEY uq_bookings_reference (reference),
		UNIQUE KEY uq_bookings_payment_reference (payment_reference),
		KEY idx_bookings_status_created (status, created_at),
		KEY idx_bookings_trip (trip_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS seat_holds (
		trip_id VARCHAR(64) NOT NULL,
		seat_number VARCHAR(16) NOT NULL,
		booking_id CHAR(36) NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE KEY uq_trip_seat (trip_id, seat_number),
		KEY idx_seat_holds_booking (booking_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS loyalty_accounts (
		user_id VARCHAR(64) NOT NULL PRIMARY KEY,
		balance BIGINT NOT NULL DEFAULT 0,
		lifetime_earned BIGINT NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS loyalty_transactions (
		id CHAR(36) NOT NULL PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		booking_id CHAR(36) NULL,
		points_change BIGINT NOT NULL,
		type VARCHAR(16) NOT NULL,
		description VARCHAR(255) NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		UNIQUE KEY uq_loyalty_booking_type (booking_id, type),
		KEY idx_loyalty_user (user_id, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS payment_validations (
		id CHAR(36) NOT NULL PRIMARY KEY,
		booking_id CHAR(36) NOT NULL,
		payment_reference VARCHAR(128) NOT NULL,
		file_name VARCHAR(255) NOT NULL,
		mime_type VARCHAR(64) NOT NULL,
		content MEDIUMBLOB NOT NULL,
		status VARCHAR(16) NOT NULL,
		approved_amount BIGINT NULL,
		notes VARCHAR(255) NULL,
		created_at DATETIME NOT NULL,
		reviewed_at DATETIME NULL,
		KEY idx_payment_validations_ref (payment_reference, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates missing tables. Existing tables are left untouched.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, ddl := range schema {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table %s: %w", Tables[i], err)
		}
	}
	return nil
}

// MissingTables lists engine tables absent from the connected database.
func MissingTables(ctx context.Context, q Execer) []string {
	var missing []string
	for _, table := range Tables {
		if !HasTable(ctx, q, table) {
			missing = append(missing, table)
		}
	}
	return missing
}
