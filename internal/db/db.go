package db

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	database, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(database); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return database, nil
}

func runMigrations(database *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS staff_users (
            id TEXT PRIMARY KEY,
            school_id TEXT NOT NULL,
            name TEXT NOT NULL,
            role TEXT NOT NULL,
            active BOOLEAN NOT NULL DEFAULT TRUE
        );`,
		`CREATE TABLE IF NOT EXISTS classes (
            id TEXT PRIMARY KEY,
            school_id TEXT NOT NULL,
            name TEXT NOT NULL,
            level TEXT NOT NULL DEFAULT '',
            homeroom_teacher_id TEXT REFERENCES staff_users(id),
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS class_teachers (
            class_id TEXT NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
            teacher_id TEXT NOT NULL REFERENCES staff_users(id) ON DELETE CASCADE,
            PRIMARY KEY (class_id, teacher_id)
        );`,
		`CREATE TABLE IF NOT EXISTS parents (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS students (
            id TEXT PRIMARY KEY,
            school_id TEXT NOT NULL,
            class_id TEXT REFERENCES classes(id) ON DELETE SET NULL,
            parent_id TEXT REFERENCES parents(id) ON DELETE SET NULL,
            name TEXT NOT NULL,
            active BOOLEAN NOT NULL DEFAULT TRUE
        );`,
		`CREATE INDEX IF NOT EXISTS idx_students_class ON students (class_id);`,
		`CREATE INDEX IF NOT EXISTS idx_students_parent ON students (parent_id);`,
		`CREATE TABLE IF NOT EXISTS chat_members (
            class_id TEXT NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
            member_type TEXT NOT NULL,
            member_id TEXT NOT NULL,
            role TEXT NOT NULL,
            name TEXT NOT NULL,
            joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (class_id, member_type, member_id)
        );`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
            id TEXT PRIMARY KEY,
            class_id TEXT NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
            sender_type TEXT NOT NULL,
            sender_id TEXT NOT NULL,
            sender_role TEXT NOT NULL,
            sender_name TEXT NOT NULL,
            sender_avatar TEXT NOT NULL DEFAULT '',
            message_type TEXT NOT NULL,
            content TEXT NOT NULL,
            metadata JSONB,
            target_student_id TEXT,
            file_name TEXT,
            file_original_name TEXT,
            file_size BIGINT,
            file_mime TEXT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_class_created ON chat_messages (class_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_file ON chat_messages (file_name) WHERE file_name IS NOT NULL;`,
	}

	for _, m := range migrations {
		if _, err := database.Exec(m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}
