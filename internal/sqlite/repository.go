package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pavel-fokin/files-drop/internal/files"
	_ "modernc.org/sqlite"
)

// Repository implements files.Journal using SQLite
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new SQLite repository
func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	repo := &Repository{db: db}

	// Initialize database schema
	if err := repo.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return repo, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// initSchema creates the necessary database tables
func (r *Repository) initSchema() error {
	createTableQuery := `
	CREATE TABLE IF NOT EXISTS files (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		storage_key TEXT NOT NULL,
		size INTEGER NOT NULL,
		mime_type TEXT NOT NULL,
		session_id TEXT,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL
	);`
	if _, err := r.db.Exec(createTableQuery); err != nil {
		return fmt.Errorf("failed to create files table: %w", err)
	}

	createIndexQuery := `CREATE INDEX IF NOT EXISTS idx_files_expires_at ON files(expires_at);`
	if _, err := r.db.Exec(createIndexQuery); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// Save stores file metadata, replacing any stale row for the same code
func (r *Repository) Save(ctx context.Context, file files.File) error {
	query := `
	INSERT OR REPLACE INTO files (code, name, storage_key, size, mime_type, session_id, created_at, expires_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		file.Code,
		file.Name,
		file.StorageKey,
		file.Size,
		file.MimeType,
		file.SessionID,
		file.CreatedAt.UTC(),
		file.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save file record: %w", err)
	}

	return nil
}

// List retrieves all file metadata
func (r *Repository) List(ctx context.Context) ([]files.File, error) {
	query := `
	SELECT code, name, storage_key, size, mime_type, session_id, created_at, expires_at
	FROM files
	ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer rows.Close()

	var fileList []files.File
	for rows.Next() {
		var file files.File
		var sessionID sql.NullString
		err := rows.Scan(
			&file.Code,
			&file.Name,
			&file.StorageKey,
			&file.Size,
			&file.MimeType,
			&sessionID,
			&file.CreatedAt,
			&file.ExpiresAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file row: %w", err)
		}
		if sessionID.Valid {
			file.SessionID = sessionID.String
		}
		fileList = append(fileList, file)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating file rows: %w", err)
	}

	return fileList, nil
}

// Delete removes file metadata by code. Deleting a missing row is not an error.
func (r *Repository) Delete(ctx context.Context, code string) error {
	query := `DELETE FROM files WHERE code = ?`

	if _, err := r.db.ExecContext(ctx, query, code); err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}

	return nil
}
