package presence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// SessionDTO is one connection session. DisconnectedAt is nil while the
// connection is still open.
type SessionDTO struct {
	ID             string     `json:"id"`
	ClientID       string     `json:"client_id"`
	InstanceID     string     `json:"instance_id"`
	ConnectedAt    time.Time  `json:"connected_at"    example:"2025-07-27T16:05:05Z"`
	DisconnectedAt *time.Time `json:"disconnected_at" example:"2025-07-27T16:09:12Z"`
}

var ErrDisabled = errors.New("session log disabled")

type IPresenceService interface {
	EnsureSchema(ctx context.Context) error
	Joined(ctx context.Context, sessionID uuid.UUID, clientID string) error
	Left(ctx context.Context, sessionID uuid.UUID) error
	CloseOrphans(ctx context.Context) (int64, error)
	Recent(ctx context.Context, limit int) ([]SessionDTO, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS chat_sessions (
	id              UUID PRIMARY KEY,
	client_id       TEXT        NOT NULL,
	instance_id     TEXT        NOT NULL,
	connected_at    TIMESTAMPTZ NOT NULL,
	disconnected_at TIMESTAMPTZ
)`

type presenceService struct {
	db         *sql.DB
	instanceID string
	now        func() time.Time
}

var _ IPresenceService = (*presenceService)(nil)

func NewPresenceService(db *sql.DB, instanceID string) IPresenceService {
	return &presenceService{
		db:         db,
		instanceID: instanceID,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (svc *presenceService) EnsureSchema(ctx context.Context) error {
	_, err := svc.db.ExecContext(ctx, schema)
	return err
}

func (svc *presenceService) Joined(ctx context.Context, sessionID uuid.UUID, clientID string) error {
	_, err := svc.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, client_id, instance_id, connected_at) VALUES ($1, $2, $3, $4)`,
		sessionID.String(), clientID, svc.instanceID, svc.now(),
	)
	return err
}

// Left closes the session; closing an already closed session is a no-op.
func (svc *presenceService) Left(ctx context.Context, sessionID uuid.UUID) error {
	_, err := svc.db.ExecContext(ctx,
		`UPDATE chat_sessions SET disconnected_at = $2 WHERE id = $1 AND disconnected_at IS NULL`,
		sessionID.String(), svc.now(),
	)
	return err
}

// CloseOrphans ends sessions a previous run of this instance left open.
func (svc *presenceService) CloseOrphans(ctx context.Context) (int64, error) {
	res, err := svc.db.ExecContext(ctx,
		`UPDATE chat_sessions SET disconnected_at = $2 WHERE instance_id = $1 AND disconnected_at IS NULL`,
		svc.instanceID, svc.now(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (svc *presenceService) Recent(ctx context.Context, limit int) ([]SessionDTO, error) {
	rows, err := svc.db.QueryContext(ctx,
		`SELECT id, client_id, instance_id, connected_at, disconnected_at
		   FROM chat_sessions
		  ORDER BY connected_at DESC
		  LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]SessionDTO, 0, limit)
	for rows.Next() {
		var (
			s   SessionDTO
			end sql.NullTime
		)
		if err := rows.Scan(&s.ID, &s.ClientID, &s.InstanceID, &s.ConnectedAt, &end); err != nil {
			return nil, err
		}
		if end.Valid {
			t := end.Time
			s.DisconnectedAt = &t
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ─────────────────────────────── disabled ────────────────────────────────────

type nopService struct{}

// NewNopService is used when no database is configured.
func NewNopService() IPresenceService { return nopService{} }

func (nopService) EnsureSchema(context.Context) error                { return nil }
func (nopService) Joined(context.Context, uuid.UUID, string) error   { return nil }
func (nopService) Left(context.Context, uuid.UUID) error             { return nil }
func (nopService) CloseOrphans(context.Context) (int64, error)       { return 0, nil }
func (nopService) Recent(context.Context, int) ([]SessionDTO, error) { return nil, ErrDisabled }
