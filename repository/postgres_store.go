package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

const pgUniqueViolation = "23505"

// PostgresStore keeps every collection in one jsonb table (see db/migrations).
type PostgresStore struct {
	DB  *sql.DB
	now func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{DB: db, now: time.Now}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string, out any) error {
	var raw []byte
	err := s.DB.QueryRowContext(ctx,
		`SELECT doc FROM documents WHERE collection=$1 AND id=$2`,
		collection, id,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return json.Unmarshal(raw, out)
}

func (s *PostgresStore) Create(ctx context.Context, collection, id string, doc any) error {
	m, err := normalizeDoc(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	m["id"] = id
	m[VersionField] = float64(1)
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}

	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO documents (collection, id, doc) VALUES ($1, $2, $3)`,
		collection, id, string(raw),
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// Patch locks the row, applies the update in Go and writes the whole document back.
func (s *PostgresStore) Patch(ctx context.Context, collection, id string, expectedVersion int64, p Patch) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var raw []byte
	exists := true
	err = tx.QueryRowContext(ctx,
		`SELECT doc FROM documents WHERE collection=$1 AND id=$2 FOR UPDATE`,
		collection, id,
	).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		exists = false
	case err != nil:
		return err
	}

	var doc map[string]any
	if exists {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		if expectedVersion >= 0 && docVersion(doc) != expectedVersion {
			return ErrVersionConflict
		}
	} else {
		if !p.Upsert || expectedVersion > 0 {
			return ErrNotFound
		}
		doc = map[string]any{"id": id, VersionField: float64(0)}
	}

	if err := applyPatch(doc, p, s.now()); err != nil {
		return err
	}
	bumpVersion(doc)
	out, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	if exists {
		_, err = tx.ExecContext(ctx,
			`UPDATE documents SET doc=$3, updated_at=now() WHERE collection=$1 AND id=$2`,
			collection, id, string(out),
		)
	} else {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO documents (collection, id, doc) VALUES ($1, $2, $3)`,
			collection, id, string(out),
		)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return tx.Commit()
}

// Query pushes filters into SQL. Ordering happens in Go because timestamps
// are RFC 3339 strings inside jsonb and do not sort lexically.
func (s *PostgresStore) Query(ctx context.Context, collection string, filters []Filter, order *OrderBy, out any) error {
	where := []string{"collection = $1"}
	args := []any{collection}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	for _, f := range filters {
		switch f.Op {
		case OpEq, OpNe:
			frag, err := containment(f.Field, f.Value)
			if err != nil {
				return err
			}
			cond := "doc @> " + arg(string(frag)) + "::jsonb"
			if f.Op == OpNe {
				cond = "NOT (" + cond + ")"
			}
			where = append(where, cond)
		case OpIn:
			var ors []string
			for _, v := range f.Values {
				frag, err := containment(f.Field, v)
				if err != nil {
					return err
				}
				ors = append(ors, "doc @> "+arg(string(frag))+"::jsonb")
			}
			if len(ors) == 0 {
				ors = []string{"false"}
			}
			where = append(where, "("+strings.Join(ors, " OR ")+")")
		default:
			return fmt.Errorf("unsupported filter op %q", f.Op)
		}
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT doc FROM documents WHERE `+strings.Join(where, " AND "),
		args...,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	docs := []map[string]any{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return err
		}
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	sortDocs(docs, order)
	return decodeDoc(docs, out)
}

// containment builds {"a":{"b":v}} for path a.b.
func containment(path string, v any) ([]byte, error) {
	nv, err := normalize(v)
	if err != nil {
		return nil, err
	}
	parts := splitPath(path)
	for i := len(parts) - 1; i >= 0; i-- {
		nv = map[string]any{parts[i]: nv}
	}
	return json.Marshal(nv)
}
