package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/faucetdb/recordgate/internal/model"
)

// Store persists records in a SQL database.
type Store struct {
	db      *sqlx.DB
	dialect Dialect
	now     func() time.Time
}

// Open connects to the database named by driver and dsn and creates the
// records table if needed. An empty sqlite dsn opens an in-memory database.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	d, err := LookupDialect(driver)
	if err != nil {
		return nil, err
	}
	dsn = resolveDSN(d, dsn)

	db, err := sqlx.ConnectContext(ctx, d.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s connect: %w", d.Name, err)
	}
	if d.MaxOpenConns > 0 {
		db.SetMaxOpenConns(d.MaxOpenConns)
	}

	s := &Store{db: db, dialect: d, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate record store: %w", err)
	}
	return s, nil
}

// memoryDSN is the modernc sqlite DSN for a private in-memory database.
const memoryDSN = ":memory:"

func resolveDSN(d Dialect, dsn string) string {
	if d.Name == "sqlite" && dsn == "" {
		return memoryDSN
	}
	return dsn
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.CreateTable {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Dialect returns the configured dialect name.
func (s *Store) Dialect() string { return s.dialect.Name }

// Create inserts a record owned by ownerID. An empty input ID gets a
// generated UUIDv7.
func (s *Store) Create(ctx context.Context, ownerID string, in model.CreateRecordInput) (*model.Record, error) {
	id := in.ID
	if id == "" {
		u, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generate record id: %w", err)
		}
		id = u.String()
	}

	now := s.now().UTC()
	rec := &model.Record{
		ID:        id,
		Name:      in.Name,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	const q = `INSERT INTO records (id, name, owner_id, created_at, updated_at)
		VALUES (:id, :name, :owner_id, :created_at, :updated_at)`
	if _, err := s.db.NamedExecContext(ctx, q, rec); err != nil {
		return nil, classify(err, "insert record", id)
	}
	return rec, nil
}

// Get returns the record with id owned by ownerID. Records of other owners
// are reported as not found.
func (s *Store) Get(ctx context.Context, ownerID, id string) (*model.Record, error) {
	var rec model.Record
	q := s.db.Rebind(`SELECT id, name, owner_id, created_at, updated_at
		FROM records WHERE id = ? AND owner_id = ?`)
	if err := s.db.GetContext(ctx, &rec, q, id, ownerID); err != nil {
		return nil, classify(err, "get record", id)
	}
	return &rec, nil
}

// List returns a page of ownerID's records, oldest first, and the total
// number of records the owner has.
func (s *Store) List(ctx context.Context, ownerID string, limit, offset int) ([]model.Record, int, error) {
	var total int
	countQ := s.db.Rebind(`SELECT COUNT(*) FROM records WHERE owner_id = ?`)
	if err := s.db.GetContext(ctx, &total, countQ, ownerID); err != nil {
		return nil, 0, classify(err, "count records", "")
	}

	q := s.db.Rebind(`SELECT id, name, owner_id, created_at, updated_at
		FROM records WHERE owner_id = ? ORDER BY created_at, id ` + s.dialect.Page)
	args := append([]interface{}{ownerID}, s.dialect.pageArgs(limit, offset)...)

	records := []model.Record{}
	if err := s.db.SelectContext(ctx, &records, q, args...); err != nil {
		return nil, 0, classify(err, "list records", "")
	}
	return records, total, nil
}

// Delete removes the record with id owned by ownerID.
func (s *Store) Delete(ctx context.Context, ownerID, id string) error {
	q := s.db.Rebind(`DELETE FROM records WHERE id = ? AND owner_id = ?`)
	result, err := s.db.ExecContext(ctx, q, id, ownerID)
	if err != nil {
		return classify(err, "delete record", id)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return classify(err, "delete record", id)
	}
	if n == 0 {
		return classify(sql.ErrNoRows, "delete record", id)
	}
	return nil
}
