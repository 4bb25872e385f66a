package config

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// SetupDatabase initializes the database connection
func SetupDatabase(cfg *Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	// Create tables if they don't exist
	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// createTables creates the necessary tables in the database
func createTables(db *sqlx.DB) error {
	// Create agents table
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS agents (
			id VARCHAR(36) PRIMARY KEY,
			email VARCHAR(255) UNIQUE NOT NULL,
			name VARCHAR(255) NOT NULL,
			password VARCHAR(255) NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create agent_access table (directory grants between agents)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS agent_access (
			agent_id VARCHAR(36) NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
			peer_id VARCHAR(36) NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
			permission VARCHAR(10) NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (agent_id, peer_id, permission)
		)
	`)
	if err != nil {
		return err
	}

	// Create invoices table; doc is the relative file path and unique
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS invoices (
			id VARCHAR(36) PRIMARY KEY,
			doc VARCHAR(512) UNIQUE NOT NULL,
			category INTEGER NOT NULL,
			purchase_date DATE NOT NULL,
			reason TEXT NOT NULL,
			total BIGINT NOT NULL,
			currency VARCHAR(3) NOT NULL DEFAULT 'CAD',
			exchange_rate DOUBLE PRECISION NOT NULL DEFAULT 1.0,
			agent_id VARCHAR(36) NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create albums table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS albums (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create album_members table (reviewer/submitter/viewer roles)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS album_members (
			album_id VARCHAR(36) NOT NULL REFERENCES albums(id) ON DELETE CASCADE,
			agent_id VARCHAR(36) NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
			role VARCHAR(10) NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (album_id, agent_id)
		)
	`)
	if err != nil {
		return err
	}

	// Create images table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS images (
			id VARCHAR(36) PRIMARY KEY,
			album_id VARCHAR(36) NOT NULL REFERENCES albums(id) ON DELETE CASCADE,
			agent_id VARCHAR(36) NOT NULL REFERENCES agents(id),
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create image_files table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS image_files (
			id VARCHAR(36) PRIMARY KEY,
			image_id VARCHAR(36) NOT NULL REFERENCES images(id) ON DELETE CASCADE,
			path VARCHAR(512) NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create indexes for better performance
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_invoices_agent_id ON invoices(agent_id)",
		"CREATE INDEX IF NOT EXISTS idx_invoices_doc_lower ON invoices(lower(doc))",
		"CREATE INDEX IF NOT EXISTS idx_agent_access_agent_id ON agent_access(agent_id)",
		"CREATE INDEX IF NOT EXISTS idx_image_files_image_id ON image_files(image_id)",
	}

	for _, idx := range indexes {
		_, err = db.Exec(idx)
		if err != nil {
			log.Printf("Warning: Failed to create index: %v", err)
			// Don't return error here, indexes are not critical
		}
	}

	return nil
}
