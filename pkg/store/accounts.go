package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/merchpulse/merchpulse/pkg/domain"
	"github.com/merchpulse/merchpulse/pkg/models"
)

// AccountStore implements domain.AccountRepository on PostgreSQL.
type AccountStore struct {
	db *sql.DB
}

// NewAccountStore creates a new account store.
func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

// GetBySiteKey resolves a tenant by its public site key. Inactive accounts
// are treated as not found.
func (s *AccountStore) GetBySiteKey(ctx context.Context, siteKey string) (*models.Account, error) {
	query, args, err := psq.Select("id", "site_key", "name", "active", "created_at").
		From("accounts").
		Where(sq.Eq{"site_key": siteKey, "active": true}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building account query: %w", err)
	}

	var account models.Account
	row := s.db.QueryRowContext(ctx, query, args...)
	err = row.Scan(&account.ID, &account.SiteKey, &account.Name, &account.Active, &account.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("account")
	}
	if err != nil {
		return nil, fmt.Errorf("querying account: %w", err)
	}
	return &account, nil
}

// ExclusionStore implements domain.ExclusionRepository on PostgreSQL.
type ExclusionStore struct {
	db *sql.DB
}

// NewExclusionStore creates a new exclusion store.
func NewExclusionStore(db *sql.DB) *ExclusionStore {
	return &ExclusionStore{db: db}
}

// ListByAccount returns the account's excluded IPs and CIDR ranges.
func (s *ExclusionStore) ListByAccount(ctx context.Context, accountID int64) ([]string, error) {
	query, args, err := psq.Select("cidr").
		From("excluded_ips").
		Where(sq.Eq{"account_id": accountID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building exclusion query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying exclusions: %w", err)
	}
	defer rows.Close()

	var cidrs []string
	for rows.Next() {
		var cidr string
		if err := rows.Scan(&cidr); err != nil {
			return nil, fmt.Errorf("scanning exclusion: %w", err)
		}
		cidrs = append(cidrs, cidr)
	}
	return cidrs, rows.Err()
}
