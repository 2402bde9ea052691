package db

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Connect opens the database for the configured driver and runs migrations.
// Supported drivers: "postgres" and "sqlite".
func Connect(driver, dsn string) (*sqlx.DB, error) {
	database, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if driver == "sqlite" {
		if _, err := database.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	if err := runMigrations(database, driver); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return database, nil
}

// runMigrations applies the idempotent schema. Statements stay within the
// dialect intersection of postgres and sqlite where possible: text ids,
// epoch-millis timestamps stored as BIGINT. The messages table is the one
// exception: its seq column is the creation-order key, and each dialect
// spells an autoincrementing integer differently.
func runMigrations(database *sqlx.DB, driver string) error {
	messagesTable := `CREATE TABLE IF NOT EXISTS messages (
            seq INTEGER PRIMARY KEY AUTOINCREMENT,
            id TEXT NOT NULL UNIQUE,
            conversation_id TEXT NOT NULL,
            sender_id TEXT NOT NULL,
            sender_name TEXT NOT NULL,
            receiver_id TEXT NOT NULL,
            body TEXT NOT NULL,
            sent_at BIGINT NOT NULL,
            seen BOOLEAN NOT NULL DEFAULT FALSE
        );`
	if driver == "postgres" {
		messagesTable = `CREATE TABLE IF NOT EXISTS messages (
            seq BIGSERIAL PRIMARY KEY,
            id TEXT NOT NULL UNIQUE,
            conversation_id TEXT NOT NULL,
            sender_id TEXT NOT NULL,
            sender_name TEXT NOT NULL,
            receiver_id TEXT NOT NULL,
            body TEXT NOT NULL,
            sent_at BIGINT NOT NULL,
            seen BOOLEAN NOT NULL DEFAULT FALSE
        );`
	}

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            email TEXT NOT NULL DEFAULT '',
            photo_url TEXT NOT NULL DEFAULT '',
            updated_at BIGINT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS friends (
            user_id TEXT NOT NULL,
            friend_id TEXT NOT NULL,
            created_at BIGINT NOT NULL,
            PRIMARY KEY (user_id, friend_id)
        );`,
		messagesTable,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_unseen ON messages (conversation_id, receiver_id, seen);`,
		`CREATE TABLE IF NOT EXISTS notified_messages (
            user_id TEXT NOT NULL,
            message_id TEXT NOT NULL,
            notified_at BIGINT NOT NULL,
            PRIMARY KEY (user_id, message_id)
        );`,
	}

	for _, m := range migrations {
		if _, err := database.Exec(m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}
