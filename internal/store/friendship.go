package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/gospel5/gospel5/internal/friendship"
	"github.com/gospel5/gospel5/internal/model"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// FriendshipStore persists friendship edges. It implements friendship.Repository.
type FriendshipStore struct {
	db *sql.DB
}

var _ friendship.Repository = (*FriendshipStore)(nil)

func NewFriendshipStore(db *sql.DB) *FriendshipStore {
	return &FriendshipStore{db: db}
}

func scanFriendship(scanner interface{ Scan(...any) error }) (*model.Friendship, error) {
	var f model.Friendship
	err := scanner.Scan(&f.ID, &f.RequesterID, &f.AddresseeID, &f.Status, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

const friendshipCols = `id, requester_id, addressee_id, status, created_at, updated_at`

// pairClause matches edges between two users in either direction; bind with pairArgs.
const pairClause = `((requester_id = ? AND addressee_id = ?) OR (requester_id = ? AND addressee_id = ?))`

func pairArgs(a, b int64) []any {
	return []any{a, b, b, a}
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT
}

// Create inserts a pending edge. It returns friendship.ErrActiveExists when a
// pending or accepted edge already joins the pair in either direction; the
// partial unique index on the pair backs the check against concurrent inserts.
func (s *FriendshipStore) Create(requesterID, addresseeID int64) (*model.Friendship, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRow(
		`SELECT EXISTS(SELECT 1 FROM friendships WHERE `+pairClause+` AND status IN ('pending', 'accepted'))`,
		pairArgs(requesterID, addresseeID)...,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check active friendship: %w", err)
	}
	if exists {
		return nil, friendship.ErrActiveExists
	}

	id := uuid.NewString()
	if _, err := tx.Exec(
		`INSERT INTO friendships (id, requester_id, addressee_id, status) VALUES (?, ?, ?, ?)`,
		id, requesterID, addresseeID, model.FriendshipPending,
	); err != nil {
		if isUniqueViolation(err) {
			return nil, friendship.ErrActiveExists
		}
		return nil, fmt.Errorf("insert friendship: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return nil, friendship.ErrActiveExists
		}
		return nil, fmt.Errorf("commit friendship: %w", err)
	}
	return s.GetByID(id)
}

func (s *FriendshipStore) GetByID(id string) (*model.Friendship, error) {
	row := s.db.QueryRow(`SELECT `+friendshipCols+` FROM friendships WHERE id = ?`, id)
	f, err := scanFriendship(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get friendship: %w", err)
	}
	return f, nil
}

func (s *FriendshipStore) UpdateStatus(id string, from, to model.FriendshipStatus) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE friendships SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`,
		to, id, from,
	)
	if err != nil {
		return false, fmt.Errorf("update friendship status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *FriendshipStore) DeleteAccepted(a, b int64) (*model.Friendship, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(
		`SELECT `+friendshipCols+` FROM friendships WHERE `+pairClause+` AND status = 'accepted'`,
		pairArgs(a, b)...,
	)
	f, err := scanFriendship(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get accepted friendship: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM friendships WHERE id = ?`, f.ID); err != nil {
		return nil, fmt.Errorf("delete friendship: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete friendship: %w", err)
	}
	return f, nil
}

func (s *FriendshipStore) list(query string, args ...any) ([]model.Friendship, error) {
	rows, err := s.db.Query(`SELECT `+friendshipCols+` FROM friendships WHERE `+query+` ORDER BY created_at ASC, id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list friendships: %w", err)
	}
	defer rows.Close()

	var edges []model.Friendship
	for rows.Next() {
		f, err := scanFriendship(rows)
		if err != nil {
			return nil, fmt.Errorf("scan friendship: %w", err)
		}
		edges = append(edges, *f)
	}
	return edges, rows.Err()
}

func (s *FriendshipStore) ListAccepted(userID int64) ([]model.Friendship, error) {
	return s.list(`(requester_id = ? OR addressee_id = ?) AND status = 'accepted'`, userID, userID)
}

func (s *FriendshipStore) ListPendingTo(addresseeID int64) ([]model.Friendship, error) {
	return s.list(`addressee_id = ? AND status = 'pending'`, addresseeID)
}

func (s *FriendshipStore) ListPendingFrom(requesterID int64) ([]model.Friendship, error) {
	return s.list(`requester_id = ? AND status = 'pending'`, requesterID)
}
