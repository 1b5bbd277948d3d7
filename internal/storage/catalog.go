package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/kalambet/artisan/internal/catalog"
)

// ErrNotFound is returned when a requested entry does not exist.
var ErrNotFound = errors.New("not found")

// Entry is one catalog document as stored. Position is its build order,
// which also breaks similarity ties. Embedding may be nil. Reads do not load
// the vector; Embedded reports whether one is stored.
type Entry struct {
	Position  int
	Document  catalog.Document
	Embedding []float32
	Embedded  bool
}

const entryColumns = `position, id, source_table, source_row, reference, name, category, origin,
	fabricated, label, certification, description, image, dimensions, price, document`

const selectColumns = entryColumns + `, embedding IS NOT NULL`

// SaveEntries inserts entries in a single transaction.
func (s *Store) SaveEntries(ctx context.Context, entries []Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning insert transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO catalog_entries (`+entryColumns+`, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		d, r := e.Document, e.Document.Record
		var blob []byte
		if len(e.Embedding) > 0 {
			blob = EncodeFloat32s(e.Embedding)
		}
		if _, err := stmt.ExecContext(ctx,
			e.Position, d.ID, r.Table, r.Row, r.Reference, r.Name, r.Category, r.Origin,
			r.Date, r.Label, r.Certification, r.Description, r.Image, r.Dimensions, r.Price, d.Text,
			blob,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting entry %s: %w", d.ID, err)
		}
	}

	return tx.Commit()
}

// ScanEmbeddings calls fn for every entry that has an embedding, in position
// order. The vector passed to fn is reused between calls; copy it to retain it.
func (s *Store) ScanEmbeddings(ctx context.Context, fn func(position int, vec []float32) error) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position, embedding FROM catalog_entries
		WHERE embedding IS NOT NULL ORDER BY position ASC`)
	if err != nil {
		return fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	// Reusable buffer for decoding embeddings to avoid per-row allocations.
	var buf []float32
	for rows.Next() {
		var pos int
		var blob []byte
		if err := rows.Scan(&pos, &blob); err != nil {
			return fmt.Errorf("scanning row: %w", err)
		}
		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			return fmt.Errorf("decoding embedding at position %d: %w", pos, err)
		}
		if err := fn(pos, buf); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating rows: %w", err)
	}
	return nil
}

// EntriesAt returns the entries at the given positions, keyed by position.
func (s *Store) EntriesAt(ctx context.Context, positions []int) (map[int]Entry, error) {
	if len(positions) == 0 {
		return map[int]Entry{}, nil
	}

	args := make([]any, len(positions))
	for i, p := range positions {
		args[i] = p
	}
	query := `SELECT ` + selectColumns + ` FROM catalog_entries
		WHERE position IN (?` + strings.Repeat(",?", len(positions)-1) + `)`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching entries: %w", err)
	}
	defer rows.Close()

	out := make(map[int]Entry, len(positions))
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out[e.Position] = e
	}
	return out, rows.Err()
}

// ListEntries returns entries in position order, without embeddings.
func (s *Store) ListEntries(ctx context.Context, limit, offset int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM catalog_entries
		ORDER BY position ASC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// EntryByReference returns the first entry with the given catalog reference.
func (s *Store) EntryByReference(ctx context.Context, ref string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM catalog_entries
		WHERE reference = ? ORDER BY position ASC LIMIT 1`, ref)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

// CountEntries returns the number of stored entries.
func (s *Store) CountEntries(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM catalog_entries`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc rowScanner) (Entry, error) {
	var e Entry
	d := &e.Document
	r := &d.Record
	err := sc.Scan(&e.Position, &d.ID, &r.Table, &r.Row, &r.Reference, &r.Name, &r.Category, &r.Origin,
		&r.Date, &r.Label, &r.Certification, &r.Description, &r.Image, &r.Dimensions, &r.Price, &d.Text, &e.Embedded)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scanning entry: %w", err)
	}
	return e, nil
}
