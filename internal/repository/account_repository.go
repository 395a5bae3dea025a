package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AhmadRadith/jycc-sub001/internal/domain"
)

var (
	// ErrAccountNotFound is returned for unknown usernames or ids.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists is returned when a username is taken.
	ErrAccountExists = errors.New("account already exists")
)

// AccountRepository defines persistence access for login accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByUsername(ctx context.Context, username string) (*domain.Account, error)
}

type accountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository returns a Postgres-backed implementation.
func NewAccountRepository(pool *pgxpool.Pool) AccountRepository {
	return &accountRepository{pool: pool}
}

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	const query = `
        INSERT INTO accounts (username, password_hash, role, name, school_id, school_name, district)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		strings.ToLower(account.Username),
		account.PasswordHash,
		account.Role,
		account.Name,
		account.SchoolID,
		account.SchoolName,
		account.District,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAccountExists
	}
	return err
}

func (r *accountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	if !validID(id) {
		return nil, ErrAccountNotFound
	}
	const query = `
        SELECT id, username, password_hash, role, name, school_id, school_name, district, created_at, updated_at
        FROM accounts WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *accountRepository) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	const query = `
        SELECT id, username, password_hash, role, name, school_id, school_name, district, created_at, updated_at
        FROM accounts WHERE username=$1`
	return r.fetchSingle(ctx, query, strings.ToLower(strings.TrimSpace(username)))
}

func (r *accountRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Account, error) {
	var account domain.Account
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&account.ID,
		&account.Username,
		&account.PasswordHash,
		&account.Role,
		&account.Name,
		&account.SchoolID,
		&account.SchoolName,
		&account.District,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

type memoryAccountRepository struct {
	mu         sync.RWMutex
	byID       map[string]*domain.Account
	byUsername map[string]string
}

// NewMemoryAccountRepository builds an empty in-memory account store.
func NewMemoryAccountRepository() AccountRepository {
	return &memoryAccountRepository{
		byID:       make(map[string]*domain.Account),
		byUsername: make(map[string]string),
	}
}

func (r *memoryAccountRepository) Create(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(account.Username)
	if _, exists := r.byUsername[key]; exists {
		return ErrAccountExists
	}
	now := time.Now().UTC()
	account.ID = uuid.NewString()
	account.Username = key
	account.CreatedAt = now
	account.UpdatedAt = now
	cp := *account
	r.byID[cp.ID] = &cp
	r.byUsername[key] = cp.ID
	return nil
}

func (r *memoryAccountRepository) GetByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.byID[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *account
	return &cp, nil
}

func (r *memoryAccountRepository) GetByUsername(_ context.Context, username string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *r.byID[id]
	return &cp, nil
}
