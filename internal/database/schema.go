package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema lists the tables used by the seat inventory in creation order.
// users, halls, seats and shows belong to the catalog and are only read
// by the core; they are created here so a fresh database is usable.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		role VARCHAR(32) NOT NULL DEFAULT 'CUSTOMER',
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS halls (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS seats (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		hall_id BIGINT UNSIGNED NOT NULL,
		row_label VARCHAR(8) NOT NULL,
		seat_number INT UNSIGNED NOT NULL,
		seat_type VARCHAR(32) NOT NULL DEFAULT 'STANDARD',
		under_maintenance TINYINT(1) NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_seats_position (hall_id, row_label, seat_number),
		CONSTRAINT fk_seats_hall FOREIGN KEY (hall_id) REFERENCES halls (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS shows (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		hall_id BIGINT UNSIGNED NOT NULL,
		title VARCHAR(255) NOT NULL,
		starts_at DATETIME NOT NULL,
		ends_at DATETIME NOT NULL,
		base_price_cents INT UNSIGNED NOT NULL,
		status VARCHAR(32) NOT NULL DEFAULT 'SCHEDULED',
		KEY idx_shows_hall (hall_id),
		CONSTRAINT fk_shows_hall FOREIGN KEY (hall_id) REFERENCES halls (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS show_seats (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		show_id BIGINT UNSIGNED NOT NULL,
		seat_id BIGINT UNSIGNED NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'AVAILABLE',
		price_cents INT UNSIGNED NOT NULL,
		version INT UNSIGNED NOT NULL DEFAULT 0,
		locked_until DATETIME NULL,
		locked_by_user_id BIGINT UNSIGNED NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_show_seats_show_seat (show_id, seat_id),
		KEY idx_show_seats_status (show_id, status),
		CONSTRAINT fk_show_seats_show FOREIGN KEY (show_id) REFERENCES shows (id),
		CONSTRAINT fk_show_seats_seat FOREIGN KEY (seat_id) REFERENCES seats (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS seat_holds (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		hold_token VARCHAR(64) NOT NULL,
		user_id BIGINT UNSIGNED NOT NULL,
		show_id BIGINT UNSIGNED NOT NULL,
		status VARCHAR(16) NOT NULL,
		version INT UNSIGNED NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		UNIQUE KEY uq_seat_holds_token (hold_token),
		KEY idx_seat_holds_expiry (status, expires_at),
		CONSTRAINT fk_seat_holds_user FOREIGN KEY (user_id) REFERENCES users (id),
		CONSTRAINT fk_seat_holds_show FOREIGN KEY (show_id) REFERENCES shows (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS seat_hold_seats (
		hold_id BIGINT UNSIGNED NOT NULL,
		show_seat_id BIGINT UNSIGNED NOT NULL,
		PRIMARY KEY (hold_id, show_seat_id),
		CONSTRAINT fk_seat_hold_seats_hold FOREIGN KEY (hold_id) REFERENCES seat_holds (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS bookings (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		show_id BIGINT UNSIGNED NOT NULL,
		status VARCHAR(16) NOT NULL,
		total_amount_cents INT UNSIGNED NOT NULL,
		transaction_id VARCHAR(128) NULL,
		booked_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		KEY idx_bookings_show_status (show_id, status),
		CONSTRAINT fk_bookings_user FOREIGN KEY (user_id) REFERENCES users (id),
		CONSTRAINT fk_bookings_show FOREIGN KEY (show_id) REFERENCES shows (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS booking_seats (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		booking_id BIGINT UNSIGNED NOT NULL,
		show_seat_id BIGINT UNSIGNED NOT NULL,
		price_cents INT UNSIGNED NOT NULL,
		UNIQUE KEY uq_booking_seats (booking_id, show_seat_id),
		CONSTRAINT fk_booking_seats_booking FOREIGN KEY (booking_id) REFERENCES bookings (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing table. It is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return nil
}
