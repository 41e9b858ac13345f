package books

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shelfmark/shelfmark/internal/platform/httpx"
)

const uniqueViolation = "23505"

const bookColumns = `id, name, author, publication_date, hard_cover, newsprint, add_date`

// Repository provides PostgreSQL backed persistence for the catalog.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// filterClause builds the WHERE clause shared by Count and List. Name and
// author are substring matches; the year filter extracts the year from
// publication_date.
func filterClause(p ListParams) (string, []any) {
	var conditions []string
	var args []any
	if p.Name != "" {
		args = append(args, "%"+p.Name+"%")
		conditions = append(conditions, "name ILIKE $"+strconv.Itoa(len(args)))
	}
	if p.Author != "" {
		args = append(args, "%"+p.Author+"%")
		conditions = append(conditions, "author ILIKE $"+strconv.Itoa(len(args)))
	}
	if p.PublicationYear != 0 {
		args = append(args, p.PublicationYear)
		conditions = append(conditions, "EXTRACT(YEAR FROM publication_date) = $"+strconv.Itoa(len(args)))
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// Count returns the number of rows matching the filters.
func (r *Repository) Count(ctx context.Context, p ListParams) (int, error) {
	where, args := filterClause(p)
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM books`+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("books: count: %w", err)
	}
	return total, nil
}

// List returns one sorted page of rows matching the filters. The sort column
// comes from the fixed whitelist applied in Normalize.
func (r *Repository) List(ctx context.Context, p ListParams) ([]Book, error) {
	where, args := filterClause(p)
	column := sortColumns[p.SortBy]
	offset := (p.Page - 1) * p.Limit

	args = append(args, p.Limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM books%s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		bookColumns, where, column, p.SortOrder, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("books: list: %w", err)
	}
	defer rows.Close()

	var page []Book
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.ID, &b.Name, &b.Author, &b.PublicationDate, &b.HardCover, &b.Newsprint, &b.AddDate); err != nil {
			return nil, fmt.Errorf("books: scan: %w", err)
		}
		page = append(page, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("books: list rows: %w", err)
	}
	return page, nil
}

// Insert stores a new book and returns it with generated fields.
func (r *Repository) Insert(ctx context.Context, input NewBook) (*Book, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO books (name, author, publication_date, hard_cover, newsprint)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+bookColumns,
		input.Name, input.Author, input.PublicationDate, input.HardCover, input.Newsprint)
	var b Book
	if err := row.Scan(&b.ID, &b.Name, &b.Author, &b.PublicationDate, &b.HardCover, &b.Newsprint, &b.AddDate); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("books: %w", httpx.ErrDuplicate)
		}
		return nil, fmt.Errorf("books: insert: %w", err)
	}
	return &b, nil
}

// FindByID fetches one book.
func (r *Repository) FindByID(ctx context.Context, id int64) (*Book, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+bookColumns+` FROM books WHERE id = $1`, id)
	var b Book
	if err := row.Scan(&b.ID, &b.Name, &b.Author, &b.PublicationDate, &b.HardCover, &b.Newsprint, &b.AddDate); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, fmt.Errorf("books: find by id: %w", err)
	}
	return &b, nil
}

// Update applies the non-nil field changes and reports whether a row changed.
func (r *Repository) Update(ctx context.Context, id int64, input UpdateBook) (bool, error) {
	var sets []string
	var args []any
	appendSet := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, column+" = $"+strconv.Itoa(len(args)))
	}
	if input.Name != nil {
		appendSet("name", *input.Name)
	}
	if input.Author != nil {
		appendSet("author", *input.Author)
	}
	if input.PublicationDate != nil {
		appendSet("publication_date", *input.PublicationDate)
	}
	if input.HardCover != nil {
		appendSet("hard_cover", *input.HardCover)
	}
	if input.Newsprint != nil {
		appendSet("newsprint", *input.Newsprint)
	}
	if len(sets) == 0 {
		return false, nil
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE books SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return false, fmt.Errorf("books: %w", httpx.ErrDuplicate)
		}
		return false, fmt.Errorf("books: update: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Delete removes one book and reports whether a row was removed.
func (r *Repository) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("books: delete: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
