// Package library keeps a catalog of generated pieces in a SQLite database.
package library

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cwolffff/m00sic"
	"github.com/cwolffff/m00sic/midifile"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type (
	Library struct {
		db *sql.DB
	}

	// Piece is one catalogued sequence. MIDI holds the sequence as a
	// standard MIDI file.
	Piece struct {
		ID        string
		Name      string
		Key       string
		Score     float64
		Created   time.Time
		Notes     int
		TotalTime float64
		Tempo     float64
		MIDI      []byte
	}
)

var ErrNotFound = errors.New("piece not found")

const schema = `
CREATE TABLE IF NOT EXISTS pieces (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	key_name TEXT NOT NULL,
	score REAL NOT NULL DEFAULT 0,
	created INTEGER NOT NULL,
	notes INTEGER NOT NULL,
	total_time REAL NOT NULL,
	tempo REAL NOT NULL,
	midi BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pieces_key_score ON pieces(key_name, score);
CREATE INDEX IF NOT EXISTS idx_pieces_created ON pieces(created);
`

const pieceColumns = `id, name, key_name, score, created, notes, total_time, tempo`

// Open opens or creates the database at path; ":memory:" opens a private
// in-memory database.
func Open(path string) (*Library, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// every connection to :memory: would be a different database
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return &Library{db: db}, nil
}

// NewPiece encodes the sequence and fills in the metadata of a piece.
func NewPiece(name string, key m00sic.Key, score float64, seq m00sic.NoteSequence) (Piece, error) {
	b, err := midifile.Bytes(seq)
	if err != nil {
		return Piece{}, err
	}
	id := seq.ID
	if id == "" {
		id = uuid.NewString()
	}
	return Piece{
		ID:        id,
		Name:      name,
		Key:       key.Name(),
		Score:     score,
		Created:   time.Now(),
		Notes:     len(seq.Notes),
		TotalTime: seq.TotalTime,
		Tempo:     seq.Tempo,
		MIDI:      b,
	}, nil
}

// Sequence decodes the MIDI data of the piece.
func (p Piece) Sequence() (m00sic.NoteSequence, error) {
	seq, err := midifile.Read(bytes.NewReader(p.MIDI))
	if err != nil {
		return m00sic.NoteSequence{}, fmt.Errorf("piece %v: %w", p.ID, err)
	}
	seq.ID = p.ID
	return seq, nil
}

// Save stores the piece, replacing a piece with the same ID. A missing ID
// or creation time is filled in and returned.
func (l *Library) Save(ctx context.Context, p Piece) (Piece, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Created.IsZero() {
		p.Created = time.Now()
	}
	if len(p.MIDI) == 0 {
		return Piece{}, fmt.Errorf("piece %v has no MIDI data", p.ID)
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO pieces (`+pieceColumns+`, midi) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Key, p.Score, p.Created.UnixNano(), p.Notes, p.TotalTime, p.Tempo, p.MIDI)
	if err != nil {
		return Piece{}, fmt.Errorf("failed to save piece %v: %w", p.ID, err)
	}
	return p, nil
}

// Get returns the piece with its MIDI data.
func (l *Library) Get(ctx context.Context, id string) (Piece, error) {
	row := l.db.QueryRowContext(ctx, `SELECT `+pieceColumns+`, midi FROM pieces WHERE id = ?`, id)
	p, err := scanPiece(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return Piece{}, fmt.Errorf("%w: %v", ErrNotFound, id)
	}
	if err != nil {
		return Piece{}, fmt.Errorf("failed to get piece %v: %w", id, err)
	}
	return p, nil
}

// List returns the newest pieces first, without their MIDI data. A limit of
// zero or less lists everything.
func (l *Library) List(ctx context.Context, limit int) ([]Piece, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := l.db.QueryContext(ctx, `SELECT `+pieceColumns+` FROM pieces ORDER BY created DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pieces: %w", err)
	}
	defer rows.Close()
	var ret []Piece
	for rows.Next() {
		p, err := scanPiece(rows, false)
		if err != nil {
			return nil, fmt.Errorf("failed to scan piece: %w", err)
		}
		ret = append(ret, p)
	}
	return ret, rows.Err()
}

// Best returns the highest scoring piece in the key, e.g. "C major"; an
// empty key considers all pieces.
func (l *Library) Best(ctx context.Context, key string) (Piece, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT `+pieceColumns+`, midi FROM pieces WHERE ? = '' OR key_name = ? ORDER BY score DESC, created DESC LIMIT 1`,
		key, key)
	p, err := scanPiece(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return Piece{}, fmt.Errorf("%w: no pieces in %q", ErrNotFound, key)
	}
	if err != nil {
		return Piece{}, fmt.Errorf("failed to query best piece: %w", err)
	}
	return p, nil
}

// Delete removes the piece.
func (l *Library) Delete(ctx context.Context, id string) error {
	res, err := l.db.ExecContext(ctx, `DELETE FROM pieces WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete piece %v: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %v", ErrNotFound, id)
	}
	return nil
}

func (l *Library) Close() error {
	return l.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPiece(s scanner, withMIDI bool) (Piece, error) {
	var p Piece
	var created int64
	dest := []any{&p.ID, &p.Name, &p.Key, &p.Score, &created, &p.Notes, &p.TotalTime, &p.Tempo}
	if withMIDI {
		dest = append(dest, &p.MIDI)
	}
	if err := s.Scan(dest...); err != nil {
		return Piece{}, err
	}
	p.Created = time.Unix(0, created)
	return p, nil
}
