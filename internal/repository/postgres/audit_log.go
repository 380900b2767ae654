package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"medqueue/internal/models"
	"medqueue/internal/repository"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type auditLogRepository struct {
	repository.BaseRepository
}

// NewAuditLogRepository creates a new PostgreSQL audit log repository
func NewAuditLogRepository(db *sql.DB) repository.AuditLogRepository {
	return &auditLogRepository{
		BaseRepository: repository.NewBaseRepository(db),
	}
}

func (r *auditLogRepository) Create(ctx context.Context, log *models.CreateAuditLogRequest) error {
	query := `
		INSERT INTO audit_logs (
			id, user_id, action, entity_type, entity_id,
			description, metadata, ip_address, user_agent,
			created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)`

	_, err := r.Conn(ctx).ExecContext(ctx, query,
		uuid.New(),
		log.UserID,
		log.Action,
		log.EntityType,
		log.EntityID,
		log.Description,
		log.Metadata,
		log.IPAddress,
		log.UserAgent,
		time.Now().UTC(),
	)
	return repository.MapError(err)
}

func (r *auditLogRepository) buildListQuery(filter repository.AuditLogFilter) (string, []any) {
	var conditions []string
	var params []any
	next := func(v any) int {
		params = append(params, v)
		return len(params)
	}

	query := `
		SELECT id, user_id, action, entity_type, entity_id,
			   description, metadata, ip_address, user_agent,
			   created_at
		FROM audit_logs`

	if filter.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", next(*filter.UserID)))
	}
	if len(filter.Actions) > 0 {
		actions := make([]string, len(filter.Actions))
		for i, a := range filter.Actions {
			actions[i] = string(a)
		}
		conditions = append(conditions, fmt.Sprintf("action = ANY($%d)", next(pq.Array(actions))))
	}
	if len(filter.EntityTypes) > 0 {
		conditions = append(conditions, fmt.Sprintf("entity_type = ANY($%d)", next(pq.Array(filter.EntityTypes))))
	}
	if len(filter.EntityIDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("entity_id = ANY($%d)", next(pq.Array(filter.EntityIDs))))
	}
	if filter.CreatedBefore != nil {
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", next(*filter.CreatedBefore)))
	}
	if filter.CreatedAfter != nil {
		conditions = append(conditions, fmt.Sprintf("created_at > $%d", next(*filter.CreatedAfter)))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	if filter.Limit != nil {
		query += fmt.Sprintf(" LIMIT $%d", next(*filter.Limit))
	}
	if filter.Offset != nil {
		query += fmt.Sprintf(" OFFSET $%d", next(*filter.Offset))
	}

	return query, params
}

func (r *auditLogRepository) List(ctx context.Context, filter repository.AuditLogFilter) ([]models.AuditLog, error) {
	query, params := r.buildListQuery(filter)

	rows, err := r.Conn(ctx).QueryContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]models.AuditLog, 0)
	for rows.Next() {
		var log models.AuditLog
		err := rows.Scan(
			&log.ID,
			&log.UserID,
			&log.Action,
			&log.EntityType,
			&log.EntityID,
			&log.Description,
			&log.Metadata,
			&log.IPAddress,
			&log.UserAgent,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}

	return logs, rows.Err()
}

func (r *auditLogRepository) CleanupOld(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	result, err := r.Conn(ctx).ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
