package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/BTreeMap/IntakePipe/internal/models"
)

// nilIfEmpty returns nil for empty strings so optional columns stay NULL.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// scanLead reads one lead row from a query over the leads table.
func scanLead(rows *sql.Rows) (models.Lead, error) {
	var lead models.Lead
	var answersJSON string
	var phone sql.NullString

	if err := rows.Scan(&lead.ID, &lead.SessionID, &answersJSON, &phone,
		&lead.Status, &lead.Source, &lead.CreatedAt); err != nil {
		return models.Lead{}, fmt.Errorf("failed to scan lead row: %w", err)
	}
	lead.Phone = phone.String
	if answersJSON != "" {
		if err := json.Unmarshal([]byte(answersJSON), &lead.Answers); err != nil {
			return models.Lead{}, fmt.Errorf("failed to unmarshal lead answers: %w", err)
		}
	}
	return lead, nil
}
