package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/SwarupAusarkar/QuickPath/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrLinkNotFound = errors.New("link not found")
	ErrCodeExists   = errors.New("short code already exists")
)

// uniqueViolation is the Postgres error code for unique_violation.
const uniqueViolation = "23505"

type LinkRepository interface {
	Create(ctx context.Context, link *models.Link) error
	GetByShortCode(ctx context.Context, code string) (*models.Link, error)
	Exists(ctx context.Context, code string) (bool, error)
	AttachQRCodeURL(ctx context.Context, code, qrURL string) error
	List(ctx context.Context, limit, offset int) ([]*models.Link, error)
}

type linkRepository struct {
	db *PostgresDB
}

func NewLinkRepository(db *PostgresDB) LinkRepository {
	return &linkRepository{db: db}
}

// Create inserts the link, relying on the unique index on short_code to
// reject duplicates atomically. Two concurrent inserts of the same code
// therefore yield exactly one success and one ErrCodeExists.
func (r *linkRepository) Create(ctx context.Context, link *models.Link) error {
	query := `
		INSERT INTO links (short_code, original_url, qr_code_url, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.db.Pool.QueryRow(
		ctx,
		query,
		link.ShortCode,
		link.OriginalURL,
		link.QRCodeURL,
		link.CreatedAt,
	).Scan(&link.ID, &link.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrCodeExists
		}
		return fmt.Errorf("failed to create link: %w", err)
	}

	return nil
}

func (r *linkRepository) GetByShortCode(ctx context.Context, code string) (*models.Link, error) {
	query := `
		SELECT id, short_code, original_url, COALESCE(qr_code_url, ''), created_at
		FROM links
		WHERE short_code = $1
	`

	link := &models.Link{}
	err := r.db.Pool.QueryRow(ctx, query, code).Scan(
		&link.ID,
		&link.ShortCode,
		&link.OriginalURL,
		&link.QRCodeURL,
		&link.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return link, nil
}

// Exists is the uniqueness oracle for code generation. It narrows the
// collision window only; Create remains the authority.
func (r *linkRepository) Exists(ctx context.Context, code string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM links WHERE short_code = $1)`

	var exists bool
	if err := r.db.Pool.QueryRow(ctx, query, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check code existence: %w", err)
	}

	return exists, nil
}

// AttachQRCodeURL overwrites any previously stored QR URL. QR generation
// is best-effort and retried, so the write is intentionally not guarded.
func (r *linkRepository) AttachQRCodeURL(ctx context.Context, code, qrURL string) error {
	query := `UPDATE links SET qr_code_url = $2 WHERE short_code = $1`

	result, err := r.db.Pool.Exec(ctx, query, code, qrURL)
	if err != nil {
		return fmt.Errorf("failed to attach QR code URL: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	return nil
}

func (r *linkRepository) List(ctx context.Context, limit, offset int) ([]*models.Link, error) {
	query := `
		SELECT id, short_code, original_url, COALESCE(qr_code_url, ''), created_at
		FROM links
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	links := make([]*models.Link, 0, limit)
	for rows.Next() {
		link := &models.Link{}
		if err := rows.Scan(
			&link.ID,
			&link.ShortCode,
			&link.OriginalURL,
			&link.QRCodeURL,
			&link.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, link)
	}

	return links, rows.Err()
}
