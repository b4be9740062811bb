// Package sqlite persists videos, users, the job queue, and job tracking in
// one SQLite database. Schema changes ship as embedded goose migrations.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"

	"github.com/vodmill/vodmill/internal/domain"
	"github.com/vodmill/vodmill/internal/port"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db *sql.DB
}

var hookOnce sync.Once

func registerHook() {
	hookOnce.Do(func() {
		sqlite.RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, dsn string) error {
			pragmas := []string{
				"PRAGMA journal_mode = WAL",
				"PRAGMA busy_timeout = 5000",
				"PRAGMA synchronous = NORMAL",
				"PRAGMA foreign_keys = ON",
			}
			for _, p := range pragmas {
				if _, err := conn.ExecContext(context.Background(), p, nil); err != nil {
					return fmt.Errorf("execute %s: %w", p, err)
				}
			}
			return nil
		})
	})
}

func NewStore(dataDir string) (*Store, error) {
	registerHook()

	dbPath := filepath.Join(dataDir, "vodmill.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single connection: WAL allows concurrent reads but only one writer,
	// and a single conn sidesteps SQLITE_BUSY between workers.
	db.SetMaxOpenConns(1)

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

const videoColumns = `id, title, description, original_file_name, unique_file_name,
	owner_id, status, visibility, available_resolutions, duration,
	error_message, created_at, updated_at`

func (s *Store) Save(v *domain.Video) error {
	resolutions, err := marshalResolutions(v.AvailableResolutions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(context.Background(), `
		INSERT INTO videos (`+videoColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.Title, v.Description, v.OriginalFileName, v.UniqueFileName,
		v.OwnerID, string(v.Status), string(v.Visibility), resolutions,
		v.Duration, v.ErrorMessage, v.CreatedAt, v.UpdatedAt,
	)
	return err
}

func (s *Store) Get(id string) (*domain.Video, error) {
	row := s.db.QueryRowContext(context.Background(),
		`SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	return scanVideo(row)
}

func (s *Store) ListByOwner(ownerID int64) ([]*domain.Video, error) {
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT `+videoColumns+` FROM videos WHERE owner_id = ? ORDER BY created_at DESC`,
		ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanVideos(rows)
}

func (s *Store) Delete(id string) error {
	_, err := s.db.ExecContext(context.Background(),
		`DELETE FROM videos WHERE id = ?`, id)
	return err
}

func (s *Store) UpdateMeta(v *domain.Video) error {
	_, err := s.db.ExecContext(context.Background(), `
		UPDATE videos
		SET title = ?, description = ?, visibility = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		v.Title, v.Description, string(v.Visibility), v.ID,
	)
	return err
}

func (s *Store) UpdateStatus(id string, status domain.VideoStatus, errMsg string) error {
	_, err := s.db.ExecContext(context.Background(), `
		UPDATE videos
		SET status = ?, error_message = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		string(status), errMsg, id,
	)
	return err
}

func (s *Store) UpdateFinished(v *domain.Video) error {
	resolutions, err := marshalResolutions(v.AvailableResolutions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(context.Background(), `
		UPDATE videos
		SET status = ?, available_resolutions = ?, duration = ?,
			unique_file_name = ?, original_file_name = ?, error_message = '',
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		string(v.Status), resolutions, v.Duration,
		v.UniqueFileName, v.OriginalFileName, v.ID,
	)
	return err
}

func (s *Store) SearchPublic(query string) ([]*domain.Video, error) {
	rows, err := s.db.QueryContext(context.Background(), `
		SELECT `+videoColumns+` FROM videos
		WHERE visibility = 'public' AND status = 'finished'
			AND title LIKE '%' || ? || '%' COLLATE NOCASE
		ORDER BY created_at DESC`,
		query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanVideos(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (*domain.Video, error) {
	var v domain.Video
	var status, visibility, resolutions string
	err := row.Scan(
		&v.ID, &v.Title, &v.Description, &v.OriginalFileName, &v.UniqueFileName,
		&v.OwnerID, &status, &visibility, &resolutions, &v.Duration,
		&v.ErrorMessage, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	v.Status = domain.VideoStatus(status)
	v.Visibility = domain.Visibility(visibility)
	if err := json.Unmarshal([]byte(resolutions), &v.AvailableResolutions); err != nil {
		return nil, fmt.Errorf("decode resolutions for %s: %w", v.ID, err)
	}
	if v.AvailableResolutions == nil {
		v.AvailableResolutions = []string{}
	}
	return &v, nil
}

func scanVideos(rows *sql.Rows) ([]*domain.Video, error) {
	videos := []*domain.Video{}
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

func marshalResolutions(resolutions []string) (string, error) {
	if resolutions == nil {
		resolutions = []string{}
	}
	data, err := json.Marshal(resolutions)
	if err != nil {
		return "", fmt.Errorf("encode resolutions: %w", err)
	}
	return string(data), nil
}

// User queries

func (s *Store) CreateUser(username, passwordHash string) (*domain.User, error) {
	row := s.db.QueryRowContext(context.Background(), `
		INSERT INTO users (username, password_hash)
		VALUES (?, ?)
		RETURNING id, username, password_hash, created_at`,
		username, passwordHash)
	return scanUser(row)
}

func (s *Store) GetUser(username string) (*domain.User, error) {
	row := s.db.QueryRowContext(context.Background(), `
		SELECT id, username, password_hash, created_at
		FROM users WHERE username = ?`, username)
	return scanUser(row)
}

func (s *Store) GetUserByID(id int64) (*domain.User, error) {
	row := s.db.QueryRowContext(context.Background(), `
		SELECT id, username, password_hash, created_at
		FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// now is separated out so queue tests can pin the clock.
var now = time.Now

var (
	_ port.VideoStore = (*Store)(nil)
	_ port.UserStore  = (*Store)(nil)
)
