package store

import (
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"

	"github.com/gospel5/gospel5/internal/model"
	"golang.org/x/crypto/bcrypt"
)

// MaxLoginCodeAttempts is the number of wrong guesses after which a code is burned.
const MaxLoginCodeAttempts = 5

type LoginCodeStore struct {
	db *sql.DB
}

func NewLoginCodeStore(db *sql.DB) *LoginCodeStore {
	return &LoginCodeStore{db: db}
}

func scanLoginCode(scanner interface{ Scan(...any) error }) (*model.LoginCode, error) {
	var lc model.LoginCode
	var usedAt sql.NullTime

	err := scanner.Scan(&lc.ID, &lc.Email, &lc.CodeHash, &lc.ExpiresAt, &usedAt, &lc.Attempts, &lc.CreatedAt)
	if err != nil {
		return nil, err
	}
	if usedAt.Valid {
		lc.UsedAt = &usedAt.Time
	}
	return &lc, nil
}

const loginCodeCols = `id, email, code_hash, expires_at, used_at, attempts, created_at`

// generateCode returns a 6-digit numeric code (100000–999999).
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Create issues a new 15-minute code for email and returns the plaintext
// code. Any earlier unused codes for the email are invalidated.
func (s *LoginCodeStore) Create(email string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash code: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE login_codes SET used_at = datetime('now') WHERE email = ? AND used_at IS NULL`,
		email,
	); err != nil {
		return "", fmt.Errorf("invalidate previous codes: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO login_codes (email, code_hash, expires_at) VALUES (?, ?, datetime('now', '+15 minutes'))`,
		email, string(hash),
	); err != nil {
		return "", fmt.Errorf("insert login code: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit login code: %w", err)
	}
	return code, nil
}

// GetLatestByEmail returns the most recent unexpired, unused code for email.
func (s *LoginCodeStore) GetLatestByEmail(email string) (*model.LoginCode, error) {
	row := s.db.QueryRow(
		`SELECT `+loginCodeCols+` FROM login_codes
		 WHERE email = ? AND expires_at > datetime('now') AND used_at IS NULL
		 ORDER BY id DESC LIMIT 1`,
		email,
	)
	lc, err := scanLoginCode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest login code: %w", err)
	}
	return lc, nil
}

// Verify checks code against the latest valid code for email. A match marks
// the code used. A mismatch counts an attempt and burns the code once
// MaxLoginCodeAttempts is reached.
func (s *LoginCodeStore) Verify(email, code string) (bool, error) {
	lc, err := s.GetLatestByEmail(email)
	if err != nil {
		return false, err
	}
	if lc == nil || lc.Attempts >= MaxLoginCodeAttempts {
		return false, nil
	}

	if bcrypt.CompareHashAndPassword([]byte(lc.CodeHash), []byte(code)) == nil {
		if _, err := s.db.Exec(`UPDATE login_codes SET used_at = datetime('now') WHERE id = ?`, lc.ID); err != nil {
			return false, fmt.Errorf("mark login code used: %w", err)
		}
		return true, nil
	}

	if _, err := s.db.Exec(
		`UPDATE login_codes SET attempts = attempts + 1,
		 used_at = CASE WHEN attempts + 1 >= ? THEN datetime('now') ELSE used_at END
		 WHERE id = ?`,
		MaxLoginCodeAttempts, lc.ID,
	); err != nil {
		return false, fmt.Errorf("increment attempts: %w", err)
	}
	return false, nil
}

func (s *LoginCodeStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM login_codes WHERE expires_at <= datetime('now') OR used_at IS NOT NULL`)
	if err != nil {
		return 0, fmt.Errorf("delete expired login codes: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
