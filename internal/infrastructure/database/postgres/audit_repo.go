package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/devilmonastery/creatorlink/internal/domain/entities"
	"github.com/devilmonastery/creatorlink/internal/domain/repositories"
	"github.com/devilmonastery/creatorlink/internal/pkg/idgen"
	"github.com/devilmonastery/creatorlink/internal/pkg/metrics"
)

// AuditRepository implements the AuditRepository interface for PostgreSQL
type AuditRepository struct {
	db  *sqlx.DB
	log *slog.Logger
}

// NewAuditRepository creates a new PostgreSQL audit repository
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{
		db:  db,
		log: slog.Default().With(slog.String("repo", "audit")),
	}
}

var _ repositories.AuditRepository = (*AuditRepository)(nil)

// auditLogRow represents an audit log as stored in the database
type auditLogRow struct {
	ID         string         `db:"id"`
	UserID     sql.NullString `db:"user_id"`
	Action     string         `db:"action"`
	Resource   string         `db:"resource_type"`
	ResourceID sql.NullString `db:"resource_id"`
	IPAddress  sql.NullString `db:"ip_address"`
	UserAgent  sql.NullString `db:"user_agent"`
	Metadata   string         `db:"metadata"`
	Success    bool           `db:"success"`
	ErrorMsg   sql.NullString `db:"error_message"`
	CreatedAt  time.Time      `db:"timestamp"`
}

// toEntity converts an auditLogRow to a domain entity
func (r *auditLogRow) toEntity() (*entities.AuditLog, error) {
	auditLog := &entities.AuditLog{
		ID:        r.ID,
		Action:    entities.AuditAction(r.Action),
		Resource:  entities.AuditResource(r.Resource),
		Success:   r.Success,
		CreatedAt: r.CreatedAt,
	}

	// Handle nullable fields
	if r.UserID.Valid {
		auditLog.UserID = &r.UserID.String
	}
	if r.ResourceID.Valid {
		auditLog.ResourceID = &r.ResourceID.String
	}
	if r.IPAddress.Valid {
		auditLog.IPAddress = &r.IPAddress.String
	}
	if r.UserAgent.Valid {
		auditLog.UserAgent = &r.UserAgent.String
	}
	if r.ErrorMsg.Valid {
		auditLog.ErrorMsg = &r.ErrorMsg.String
	}

	if err := auditLog.UnmarshalMetadataFromJSON(r.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return auditLog, nil
}

// auditLogRowFromEntity converts a domain entity to an auditLogRow
func auditLogRowFromEntity(auditLog *entities.AuditLog) (*auditLogRow, error) {
	row := &auditLogRow{
		ID:        auditLog.ID,
		Action:    string(auditLog.Action),
		Resource:  string(auditLog.Resource),
		Success:   auditLog.Success,
		CreatedAt: auditLog.CreatedAt,
	}

	if auditLog.UserID != nil {
		row.UserID = sql.NullString{String: *auditLog.UserID, Valid: true}
	}
	if auditLog.ResourceID != nil {
		row.ResourceID = sql.NullString{String: *auditLog.ResourceID, Valid: true}
	}
	if auditLog.IPAddress != nil {
		row.IPAddress = sql.NullString{String: *auditLog.IPAddress, Valid: true}
	}
	if auditLog.UserAgent != nil {
		row.UserAgent = sql.NullString{String: *auditLog.UserAgent, Valid: true}
	}
	if auditLog.ErrorMsg != nil {
		row.ErrorMsg = sql.NullString{String: *auditLog.ErrorMsg, Valid: true}
	}

	metadata, err := auditLog.MarshalMetadataToJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	row.Metadata = metadata

	return row, nil
}

// Create creates a new audit log entry
func (r *AuditRepository) Create(ctx context.Context, log *entities.AuditLog) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("audit", "create", time.Since(start), 1, err)
	}()

	if log.ID == "" {
		log.ID = idgen.GenerateID()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	r.log.Debug("creating audit log",
		slog.String("action", string(log.Action)),
		slog.String("resource", string(log.Resource)),
		slog.Any("resource_id", log.ResourceID),
		slog.Any("user_id", log.UserID))

	row, convertErr := auditLogRowFromEntity(log)
	if convertErr != nil {
		err = convertErr
		return err
	}

	query := `
		INSERT INTO audit_logs (id, user_id, action, resource_type, resource_id, ip_address, user_agent, metadata, success, error_message, timestamp)
		VALUES (:id, :user_id, :action, :resource_type, :resource_id, :ip_address, :user_agent, :metadata, :success, :error_message, :timestamp)
	`

	_, err = r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	return nil
}

// ListByUser retrieves the most recent audit logs for a user, newest first
func (r *AuditRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*entities.AuditLog, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("audit", "list_by_user", time.Since(start), rowCount, err)
	}()

	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, user_id, action, resource_type, resource_id, ip_address, user_agent, metadata, success, error_message, timestamp
		FROM audit_logs
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	var rows []auditLogRow
	err = r.db.SelectContext(ctx, &rows, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}

	logs := make([]*entities.AuditLog, len(rows))
	for i := range rows {
		entry, convertErr := rows[i].toEntity()
		if convertErr != nil {
			err = convertErr
			return nil, fmt.Errorf("failed to convert audit log row: %w", err)
		}
		logs[i] = entry
	}

	rowCount = int64(len(rows))
	return logs, nil
}
