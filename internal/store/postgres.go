// Package store provides storage backends for IntakePipe.
//
// This file implements a PostgreSQL-backed store for sessions, flows and leads.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/IntakePipe/internal/models"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// Constants for PostgreSQL connection pool configuration
const (
	// DefaultMaxOpenConns defines the maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns defines the maximum number of idle connections in the pool
	DefaultMaxIdleConns = 5
	// DefaultConnMaxLifetime defines the maximum lifetime of a connection
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run PostgreSQL migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgreSQL migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// GetSession retrieves a session by id. Returns (nil, nil) when absent.
func (s *PostgresStore) GetSession(sessionID string) (*models.Session, error) {
	query := `SELECT session_id, platform, current_step, responses, flow_completed, phone_collected,
			  phone_number, phone_formatted, message_count, created_at, last_updated
			  FROM sessions WHERE session_id = $1`

	var sess models.Session
	var responsesJSON, phoneNumber, phoneFormatted sql.NullString

	err := s.db.QueryRow(query, sessionID).Scan(
		&sess.SessionID, &sess.Platform, &sess.CurrentStep, &responsesJSON,
		&sess.FlowCompleted, &sess.PhoneCollected, &phoneNumber, &phoneFormatted,
		&sess.MessageCount, &sess.CreatedAt, &sess.LastUpdated)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetSession not found", "sessionID", sessionID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSession failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query session %s: %w", sessionID, err)
	}

	sess.PhoneNumber = phoneNumber.String
	sess.PhoneFormatted = phoneFormatted.String
	sess.Responses = make(map[string]string)
	if responsesJSON.String != "" {
		if err := json.Unmarshal([]byte(responsesJSON.String), &sess.Responses); err != nil {
			slog.Error("PostgresStore GetSession responses unmarshal failed", "error", err, "sessionID", sessionID)
			sess.Responses = make(map[string]string)
		}
	}

	slog.Debug("PostgresStore GetSession found", "sessionID", sessionID, "currentStep", sess.CurrentStep)
	return &sess, nil
}

// SaveSession upserts a session record.
func (s *PostgresStore) SaveSession(session models.Session) error {
	responsesJSON, err := json.Marshal(session.Responses)
	if err != nil {
		slog.Error("PostgresStore SaveSession responses marshal failed", "error", err, "sessionID", session.SessionID)
		return err
	}

	query := `
		INSERT INTO sessions
		(session_id, platform, current_step, responses, flow_completed, phone_collected,
		 phone_number, phone_formatted, message_count, created_at, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (session_id) DO UPDATE SET
			platform = EXCLUDED.platform,
			current_step = EXCLUDED.current_step,
			responses = EXCLUDED.responses,
			flow_completed = EXCLUDED.flow_completed,
			phone_collected = EXCLUDED.phone_collected,
			phone_number = EXCLUDED.phone_number,
			phone_formatted = EXCLUDED.phone_formatted,
			message_count = EXCLUDED.message_count,
			last_updated = EXCLUDED.last_updated`

	_, err = s.db.Exec(query, session.SessionID, session.Platform, session.CurrentStep,
		string(responsesJSON), session.FlowCompleted, session.PhoneCollected,
		nilIfEmpty(session.PhoneNumber), nilIfEmpty(session.PhoneFormatted),
		session.MessageCount, session.CreatedAt, session.LastUpdated)
	if err != nil {
		slog.Error("PostgresStore SaveSession failed", "error", err, "sessionID", session.SessionID)
		return fmt.Errorf("failed to save session %s: %w", session.SessionID, err)
	}
	slog.Debug("PostgresStore SaveSession succeeded", "sessionID", session.SessionID, "currentStep", session.CurrentStep)
	return nil
}

// DeleteSession removes a session record.
func (s *PostgresStore) DeleteSession(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		slog.Error("PostgresStore DeleteSession failed", "error", err, "sessionID", sessionID)
		return err
	}
	slog.Debug("PostgresStore DeleteSession succeeded", "sessionID", sessionID)
	return nil
}

// GetFlowDefinition retrieves the active flow definition. Returns (nil, nil) when absent.
func (s *PostgresStore) GetFlowDefinition() (*models.FlowDefinition, error) {
	var definitionJSON string
	err := s.db.QueryRow(`SELECT definition FROM flow_definitions WHERE name = $1`, DefaultFlowName).Scan(&definitionJSON)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetFlowDefinition not found")
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetFlowDefinition failed", "error", err)
		return nil, fmt.Errorf("failed to query flow definition: %w", err)
	}

	var flow models.FlowDefinition
	if err := json.Unmarshal([]byte(definitionJSON), &flow); err != nil {
		slog.Error("PostgresStore GetFlowDefinition unmarshal failed", "error", err)
		return nil, fmt.Errorf("failed to unmarshal flow definition: %w", err)
	}
	slog.Debug("PostgresStore GetFlowDefinition succeeded", "steps", len(flow.Steps))
	return &flow, nil
}

// SaveFlowDefinition stores the active flow definition.
func (s *PostgresStore) SaveFlowDefinition(flow models.FlowDefinition) error {
	definitionJSON, err := json.Marshal(flow)
	if err != nil {
		slog.Error("PostgresStore SaveFlowDefinition marshal failed", "error", err)
		return err
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO flow_definitions (name, definition, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET definition = EXCLUDED.definition, updated_at = EXCLUDED.updated_at`

	_, err = s.db.Exec(query, DefaultFlowName, string(definitionJSON), now, now)
	if err != nil {
		slog.Error("PostgresStore SaveFlowDefinition failed", "error", err)
		return fmt.Errorf("failed to save flow definition: %w", err)
	}
	slog.Debug("PostgresStore SaveFlowDefinition succeeded", "steps", len(flow.Steps))
	return nil
}

// SaveLead persists a lead record, assigning an id when none is set.
func (s *PostgresStore) SaveLead(lead models.Lead) (string, error) {
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now().UTC()
	}

	answersJSON, err := json.Marshal(lead.Answers)
	if err != nil {
		slog.Error("PostgresStore SaveLead answers marshal failed", "error", err, "sessionID", lead.SessionID)
		return "", err
	}

	query := `INSERT INTO leads (id, session_id, answers, phone, status, source, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = s.db.Exec(query, lead.ID, lead.SessionID, string(answersJSON),
		nilIfEmpty(lead.Phone), lead.Status, lead.Source, lead.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveLead failed", "error", err, "sessionID", lead.SessionID)
		return "", fmt.Errorf("failed to save lead for session %s: %w", lead.SessionID, err)
	}
	slog.Debug("PostgresStore SaveLead succeeded", "leadID", lead.ID, "sessionID", lead.SessionID)
	return lead.ID, nil
}

// ListLeads returns up to limit leads, most recent first.
func (s *PostgresStore) ListLeads(limit int) ([]models.Lead, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, session_id, answers, phone, status, source, created_at
			  FROM leads ORDER BY created_at DESC LIMIT $1`
	rows, err := s.db.Query(query, limit)
	if err != nil {
		slog.Error("PostgresStore ListLeads query failed", "error", err)
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			slog.Error("PostgresStore ListLeads scan failed", "error", err)
			return nil, err
		}
		leads = append(leads, lead)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListLeads rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate lead rows: %w", err)
	}
	slog.Debug("PostgresStore ListLeads succeeded", "count", len(leads))
	return leads, nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close PostgreSQL database", "error", err)
	}
	return err
}
