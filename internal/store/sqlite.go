// Package store provides storage backends for IntakePipe.
//
// This file implements an SQLite-backed store for sessions, flows and leads.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/BTreeMap/IntakePipe/internal/models"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
	// DefaultFlowName is the row key for the single active flow definition.
	DefaultFlowName = "law_firm_intake"
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// GetSession retrieves a session by id. Returns (nil, nil) when absent.
func (s *SQLiteStore) GetSession(sessionID string) (*models.Session, error) {
	query := `SELECT session_id, platform, current_step, responses, flow_completed, phone_collected,
			  phone_number, phone_formatted, message_count, created_at, last_updated
			  FROM sessions WHERE session_id = ?`

	var sess models.Session
	var responsesJSON, phoneNumber, phoneFormatted sql.NullString

	err := s.db.QueryRow(query, sessionID).Scan(
		&sess.SessionID, &sess.Platform, &sess.CurrentStep, &responsesJSON,
		&sess.FlowCompleted, &sess.PhoneCollected, &phoneNumber, &phoneFormatted,
		&sess.MessageCount, &sess.CreatedAt, &sess.LastUpdated)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetSession not found", "sessionID", sessionID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSession failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query session %s: %w", sessionID, err)
	}

	sess.PhoneNumber = phoneNumber.String
	sess.PhoneFormatted = phoneFormatted.String
	sess.Responses = make(map[string]string)
	if responsesJSON.String != "" {
		if err := json.Unmarshal([]byte(responsesJSON.String), &sess.Responses); err != nil {
			slog.Error("SQLiteStore GetSession responses unmarshal failed", "error", err, "sessionID", sessionID)
			// Continue with empty map rather than failing
			sess.Responses = make(map[string]string)
		}
	}

	slog.Debug("SQLiteStore GetSession found", "sessionID", sessionID, "currentStep", sess.CurrentStep)
	return &sess, nil
}

// SaveSession upserts a session record.
func (s *SQLiteStore) SaveSession(session models.Session) error {
	responsesJSON, err := json.Marshal(session.Responses)
	if err != nil {
		slog.Error("SQLiteStore SaveSession responses marshal failed", "error", err, "sessionID", session.SessionID)
		return err
	}

	query := `
		INSERT OR REPLACE INTO sessions
		(session_id, platform, current_step, responses, flow_completed, phone_collected,
		 phone_number, phone_formatted, message_count, created_at, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.Exec(query, session.SessionID, session.Platform, session.CurrentStep,
		string(responsesJSON), session.FlowCompleted, session.PhoneCollected,
		nilIfEmpty(session.PhoneNumber), nilIfEmpty(session.PhoneFormatted),
		session.MessageCount, session.CreatedAt, session.LastUpdated)
	if err != nil {
		slog.Error("SQLiteStore SaveSession failed", "error", err, "sessionID", session.SessionID)
		return fmt.Errorf("failed to save session %s: %w", session.SessionID, err)
	}
	slog.Debug("SQLiteStore SaveSession succeeded", "sessionID", session.SessionID, "currentStep", session.CurrentStep)
	return nil
}

// DeleteSession removes a session record.
func (s *SQLiteStore) DeleteSession(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		slog.Error("SQLiteStore DeleteSession failed", "error", err, "sessionID", sessionID)
		return err
	}
	slog.Debug("SQLiteStore DeleteSession succeeded", "sessionID", sessionID)
	return nil
}

// GetFlowDefinition retrieves the active flow definition. Returns (nil, nil) when absent.
func (s *SQLiteStore) GetFlowDefinition() (*models.FlowDefinition, error) {
	var definitionJSON string
	err := s.db.QueryRow(`SELECT definition FROM flow_definitions WHERE name = ?`, DefaultFlowName).Scan(&definitionJSON)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetFlowDefinition not found")
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetFlowDefinition failed", "error", err)
		return nil, fmt.Errorf("failed to query flow definition: %w", err)
	}

	var flow models.FlowDefinition
	if err := json.Unmarshal([]byte(definitionJSON), &flow); err != nil {
		slog.Error("SQLiteStore GetFlowDefinition unmarshal failed", "error", err)
		return nil, fmt.Errorf("failed to unmarshal flow definition: %w", err)
	}
	slog.Debug("SQLiteStore GetFlowDefinition succeeded", "steps", len(flow.Steps))
	return &flow, nil
}

// SaveFlowDefinition stores the active flow definition.
func (s *SQLiteStore) SaveFlowDefinition(flow models.FlowDefinition) error {
	definitionJSON, err := json.Marshal(flow)
	if err != nil {
		slog.Error("SQLiteStore SaveFlowDefinition marshal failed", "error", err)
		return err
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO flow_definitions (name, definition, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET definition = excluded.definition, updated_at = excluded.updated_at`

	_, err = s.db.Exec(query, DefaultFlowName, string(definitionJSON), now, now)
	if err != nil {
		slog.Error("SQLiteStore SaveFlowDefinition failed", "error", err)
		return fmt.Errorf("failed to save flow definition: %w", err)
	}
	slog.Debug("SQLiteStore SaveFlowDefinition succeeded", "steps", len(flow.Steps))
	return nil
}

// SaveLead persists a lead record, assigning an id when none is set.
func (s *SQLiteStore) SaveLead(lead models.Lead) (string, error) {
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now().UTC()
	}

	answersJSON, err := json.Marshal(lead.Answers)
	if err != nil {
		slog.Error("SQLiteStore SaveLead answers marshal failed", "error", err, "sessionID", lead.SessionID)
		return "", err
	}

	query := `INSERT INTO leads (id, session_id, answers, phone, status, source, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.Exec(query, lead.ID, lead.SessionID, string(answersJSON),
		nilIfEmpty(lead.Phone), lead.Status, lead.Source, lead.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveLead failed", "error", err, "sessionID", lead.SessionID)
		return "", fmt.Errorf("failed to save lead for session %s: %w", lead.SessionID, err)
	}
	slog.Debug("SQLiteStore SaveLead succeeded", "leadID", lead.ID, "sessionID", lead.SessionID)
	return lead.ID, nil
}

// ListLeads returns up to limit leads, most recent first.
func (s *SQLiteStore) ListLeads(limit int) ([]models.Lead, error) {
	query := `SELECT id, session_id, answers, phone, status, source, created_at
			  FROM leads ORDER BY created_at DESC LIMIT ?`
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(query, limit)
	if err != nil {
		slog.Error("SQLiteStore ListLeads query failed", "error", err)
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			slog.Error("SQLiteStore ListLeads scan failed", "error", err)
			return nil, err
		}
		leads = append(leads, lead)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListLeads rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate lead rows: %w", err)
	}
	slog.Debug("SQLiteStore ListLeads succeeded", "count", len(leads))
	return leads, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
