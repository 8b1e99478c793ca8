package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"codexcity/internal/model"
	"codexcity/internal/repository"

	_ "github.com/lib/pq"
)

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

const userColumns = `id, google_id, email, name, manual_override_active, last_poll_at, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	user := &model.User{}
	var lastPoll sql.NullTime
	err := row.Scan(
		&user.ID, &user.GoogleID, &user.Email, &user.Name,
		&user.ManualOverrideActive, &lastPoll,
		&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	if lastPoll.Valid {
		user.LastPollAt = &lastPoll.Time
	}
	return user, nil
}

func (r *PostgresUserRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, google_id, email, name, manual_override_active, last_poll_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (google_id) DO UPDATE SET
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			updated_at = NOW()`
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.GoogleID, user.Email, user.Name,
		user.ManualOverrideActive, user.LastPollAt,
		user.CreatedAt, user.UpdatedAt)
	return err
}

func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresUserRepository) FindByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE google_id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, googleID))
}

func (r *PostgresUserRepository) Update(ctx context.Context, user *model.User) error {
	query := `
		UPDATE users SET google_id=$1, email=$2, name=$3, manual_override_active=$4,
		last_poll_at=$5, updated_at=NOW() WHERE id=$6`
	return execOne(ctx, r.db, query,
		user.GoogleID, user.Email, user.Name, user.ManualOverrideActive,
		user.LastPollAt, user.ID)
}

func (r *PostgresUserRepository) SetManualOverride(ctx context.Context, id string, active bool) error {
	query := `UPDATE users SET manual_override_active=$1, updated_at=NOW() WHERE id=$2`
	return execOne(ctx, r.db, query, active, id)
}

func (r *PostgresUserRepository) SetLastPollAt(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE users SET last_poll_at=$1 WHERE id=$2`
	return execOne(ctx, r.db, query, at, id)
}

func (r *PostgresUserRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM users WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// execOne runs an UPDATE and maps "no row touched" to ErrNotFound.
func execOne(ctx context.Context, db *sql.DB, query string, args ...any) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Postgres Token repository implementation
type PostgresTokenRepository struct {
	db *sql.DB
}

func NewPostgresTokenRepository(db *sql.DB) *PostgresTokenRepository {
	return &PostgresTokenRepository{db: db}
}

func (r *PostgresTokenRepository) FindByUserID(ctx context.Context, userID string) (*model.Token, error) {
	query := `SELECT user_id, access_token, refresh_token, expires_at, scope, created_at, updated_at FROM gmail_tokens WHERE user_id = $1`
	row := r.db.QueryRowContext(ctx, query, userID)

	token := &model.Token{}
	var refresh, scope sql.NullString
	var expires sql.NullTime
	err := row.Scan(&token.UserID, &token.AccessToken, &refresh, &expires, &scope,
		&token.CreatedAt, &token.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	token.RefreshToken = refresh.String
	token.Scope = scope.String
	if expires.Valid {
		token.ExpiresAt = expires.Time
	}
	return token, nil
}

func (r *PostgresTokenRepository) Upsert(ctx context.Context, token *model.Token) error {
	query := `
		INSERT INTO gmail_tokens (user_id, access_token, refresh_token, expires_at, scope, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			scope = EXCLUDED.scope,
			updated_at = NOW()`
	var expires sql.NullTime
	if !token.ExpiresAt.IsZero() {
		expires = sql.NullTime{Time: token.ExpiresAt, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, query,
		token.UserID, token.AccessToken, nullString(token.RefreshToken), expires, token.Scope)
	return err
}

func (r *PostgresTokenRepository) Delete(ctx context.Context, userID string) error {
	query := `DELETE FROM gmail_tokens WHERE user_id = $1`
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Postgres Template repository implementation
type PostgresTemplateRepository struct {
	db *sql.DB
}

func NewPostgresTemplateRepository(db *sql.DB) *PostgresTemplateRepository {
	return &PostgresTemplateRepository{db: db}
}

func (r *PostgresTemplateRepository) Create(ctx context.Context, template *model.Template) error {
	query := `
		INSERT INTO templates (id, user_id, category, subject, body, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, query,
		template.ID, template.UserID, string(template.Category), template.Subject, template.Body,
		template.IsActive, template.CreatedAt, template.UpdatedAt)
	return err
}

func (r *PostgresTemplateRepository) FindByID(ctx context.Context, id string) (*model.Template, error) {
	query := `SELECT id, user_id, category, subject, body, is_active, created_at, updated_at FROM templates WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	template := &model.Template{}
	err := row.Scan(
		&template.ID, &template.UserID, &template.Category, &template.Subject, &template.Body,
		&template.IsActive, &template.CreatedAt, &template.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return template, nil
}

func (r *PostgresTemplateRepository) FindByUserID(ctx context.Context, userID string) ([]*model.Template, error) {
	query := `SELECT id, user_id, category, subject, body, is_active, created_at, updated_at FROM templates WHERE user_id = $1 ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*model.Template
	for rows.Next() {
		template := &model.Template{}
		err := rows.Scan(
			&template.ID, &template.UserID, &template.Category, &template.Subject, &template.Body,
			&template.IsActive, &template.CreatedAt, &template.UpdatedAt)
		if err != nil {
			return nil, err
		}
		templates = append(templates, template)
	}

	return templates, rows.Err()
}

func (r *PostgresTemplateRepository) Update(ctx context.Context, template *model.Template) error {
	query := `
		UPDATE templates SET category=$1, subject=$2, body=$3, is_active=$4, updated_at=NOW() WHERE id=$5`
	return execOne(ctx, r.db, query,
		string(template.Category), template.Subject, template.Body, template.IsActive, template.ID)
}

func (r *PostgresTemplateRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM templates WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// Postgres EmailLog repository implementation
type PostgresEmailLogRepository struct {
	db *sql.DB
}

func NewPostgresEmailLogRepository(db *sql.DB) *PostgresEmailLogRepository {
	return &PostgresEmailLogRepository{db: db}
}

func (r *PostgresEmailLogRepository) Create(ctx context.Context, log *model.EmailLog) error {
	query := `
		INSERT INTO email_logs (id, user_id, gmail_message_id, sender_email, subject, category,
			confidence_score, response_sent, response_template_id, processed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.ExecContext(ctx, query,
		log.ID, log.UserID, log.GmailMessageID, log.SenderEmail, log.Subject, string(log.Category),
		log.ConfidenceScore, log.ResponseSent, nullString(log.ResponseTemplateID),
		log.ProcessedAt, log.CreatedAt)
	return err
}

func (r *PostgresEmailLogRepository) FindByUserID(ctx context.Context, userID string) ([]*model.EmailLog, error) {
	query := `
		SELECT id, user_id, gmail_message_id, sender_email, subject, category, confidence_score,
			response_sent, response_template_id, processed_at, created_at
		FROM email_logs WHERE user_id = $1 ORDER BY processed_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*model.EmailLog
	for rows.Next() {
		log := &model.EmailLog{}
		var templateID sql.NullString
		err := rows.Scan(
			&log.ID, &log.UserID, &log.GmailMessageID, &log.SenderEmail, &log.Subject, &log.Category,
			&log.ConfidenceScore, &log.ResponseSent, &templateID, &log.ProcessedAt, &log.CreatedAt)
		if err != nil {
			return nil, err
		}
		log.ResponseTemplateID = templateID.String
		logs = append(logs, log)
	}

	return logs, rows.Err()
}

func (r *PostgresEmailLogRepository) HasSentResponse(ctx context.Context, userID, gmailMessageID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM email_logs WHERE user_id = $1 AND gmail_message_id = $2 AND response_sent)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, userID, gmailMessageID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// InitializeDatabase creates the necessary tables
func InitializeDatabase(db *sql.DB) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(255) PRIMARY KEY,
			google_id VARCHAR(255) UNIQUE NOT NULL,
			email VARCHAR(255) NOT NULL,
			name VARCHAR(255) NOT NULL,
			manual_override_active BOOLEAN NOT NULL DEFAULT FALSE,
			last_poll_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS gmail_tokens (
			user_id VARCHAR(255) PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			access_token TEXT NOT NULL,
			refresh_token TEXT,
			expires_at TIMESTAMPTZ,
			scope TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS templates (
			id VARCHAR(255) PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			category VARCHAR(64) NOT NULL,
			subject TEXT NOT NULL,
			body TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS email_logs (
			id VARCHAR(255) PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			gmail_message_id VARCHAR(255) NOT NULL,
			sender_email TEXT NOT NULL,
			subject TEXT NOT NULL,
			category VARCHAR(64) NOT NULL,
			confidence_score INTEGER NOT NULL DEFAULT 0,
			response_sent BOOLEAN NOT NULL DEFAULT FALSE,
			response_template_id VARCHAR(255),
			processed_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_templates_user ON templates (user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_email_logs_user_message ON email_logs (user_id, gmail_message_id)`,
	}

	for _, table := range tables {
		_, err := db.Exec(table)
		if err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}
