package twofa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MethodRepository stores each user's method list. Every mutation is atomic
// with respect to other mutations of the same user.
type MethodRepository interface {
	// ListMethods returns the user's methods in creation order
	ListMethods(ctx context.Context, userID string) (MethodList, error)
	// AddMethod appends a method, failing with ErrDuplicateMethod when the
	// user already has one with the same type and value
	AddMethod(ctx context.Context, userID string, method Method) error
	SetEnabled(ctx context.Context, userID, methodID string, enabled bool) error
	RemoveMethod(ctx context.Context, userID, methodID string) error
	TouchLastUsed(ctx context.Context, userID, methodID string, at time.Time) error
}

// methodRecord is the stored form of a Method. Unlike Method it serializes the secret.
type methodRecord struct {
	ID         string     `json:"id" db:"id"`
	Type       string     `json:"type" db:"method_type"`
	Value      string     `json:"value" db:"method_value"`
	Secret     string     `json:"secret" db:"secret"`
	Enabled    bool       `json:"enabled" db:"enabled"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
}

func toRecord(m Method) methodRecord {
	return methodRecord{
		ID:         m.ID,
		Type:       m.Type,
		Value:      m.Value,
		Secret:     m.Secret,
		Enabled:    m.Enabled,
		CreatedAt:  m.CreatedAt,
		LastUsedAt: m.LastUsedAt,
	}
}

func (r methodRecord) method() Method {
	return Method{
		MethodData: MethodData{Type: r.Type, Value: r.Value},
		ID:         r.ID,
		Secret:     r.Secret,
		Enabled:    r.Enabled,
		CreatedAt:  r.CreatedAt,
		LastUsedAt: r.LastUsedAt,
	}
}

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PostgresMethodRepository implements MethodRepository using PostgreSQL. The
// twofa_method table comes from the migrations package.
type PostgresMethodRepository struct {
	db DBTX
}

// NewPostgresMethodRepository creates a new PostgreSQL-based method repository
func NewPostgresMethodRepository(db DBTX) *PostgresMethodRepository {
	return &PostgresMethodRepository{db: db}
}

func (r *PostgresMethodRepository) ListMethods(ctx context.Context, userID string) (MethodList, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, method_type, method_value, secret, enabled, created_at, last_used_at
		FROM twofa_method
		WHERE user_id = @user_id
		ORDER BY created_at, id`,
		pgx.NamedArgs{"user_id": userID},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query methods: %w", err)
	}

	records, err := pgx.CollectRows(rows, pgx.RowToStructByName[methodRecord])
	if err != nil {
		return nil, fmt.Errorf("failed to scan methods: %w", err)
	}

	methods := make(MethodList, 0, len(records))
	for _, rec := range records {
		methods = append(methods, rec.method())
	}
	return methods, nil
}

func (r *PostgresMethodRepository) AddMethod(ctx context.Context, userID string, method Method) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO twofa_method (id, user_id, method_type, method_value, secret, enabled, created_at)
		VALUES (@id, @user_id, @method_type, @method_value, @secret, @enabled, @created_at)`,
		pgx.NamedArgs{
			"id":           method.ID,
			"user_id":      userID,
			"method_type":  method.Type,
			"method_value": method.Value,
			"secret":       method.Secret,
			"enabled":      method.Enabled,
			"created_at":   method.CreatedAt,
		},
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			slog.Debug("Method already exists", "userId", userID, "type", method.Type)
			return ErrDuplicateMethod
		}
		return fmt.Errorf("failed to insert method: %w", err)
	}
	return nil
}

func (r *PostgresMethodRepository) SetEnabled(ctx context.Context, userID, methodID string, enabled bool) error {
	return r.execOne(ctx, `
		UPDATE twofa_method SET enabled = @enabled
		WHERE user_id = @user_id AND id = @id`,
		pgx.NamedArgs{"user_id": userID, "id": methodID, "enabled": enabled},
	)
}

func (r *PostgresMethodRepository) RemoveMethod(ctx context.Context, userID, methodID string) error {
	return r.execOne(ctx, `
		DELETE FROM twofa_method
		WHERE user_id = @user_id AND id = @id`,
		pgx.NamedArgs{"user_id": userID, "id": methodID},
	)
}

func (r *PostgresMethodRepository) TouchLastUsed(ctx context.Context, userID, methodID string, at time.Time) error {
	return r.execOne(ctx, `
		UPDATE twofa_method SET last_used_at = @last_used_at
		WHERE user_id = @user_id AND id = @id`,
		pgx.NamedArgs{"user_id": userID, "id": methodID, "last_used_at": at},
	)
}

// execOne runs a statement that must touch exactly one of the user's rows
func (r *PostgresMethodRepository) execOne(ctx context.Context, sql string, args pgx.NamedArgs) error {
	tag, err := r.db.Exec(ctx, sql, args)
	if err != nil {
		return fmt.Errorf("failed to update method: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMethodNotFound
	}
	return nil
}
