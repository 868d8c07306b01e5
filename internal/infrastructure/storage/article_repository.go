package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"NewsRadar/internal/domain"
	"NewsRadar/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS articles (
    id           TEXT PRIMARY KEY,
    title        TEXT NOT NULL,
    content      TEXT NOT NULL DEFAULT '',
    link         TEXT UNIQUE NOT NULL,
    source_name  TEXT NOT NULL DEFAULT '',
    source_url   TEXT NOT NULL DEFAULT '',
    published_at TEXT,
    retrieved_at TEXT NOT NULL,
    category     TEXT NOT NULL DEFAULT '',
    image_url    TEXT NOT NULL DEFAULT '',
    is_read      BOOLEAN NOT NULL DEFAULT FALSE,
    summary      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_articles_published_at ON articles(published_at);
CREATE INDEX IF NOT EXISTS idx_articles_category ON articles(category);
`

// Merge rules live in the conflict clause so the UNIQUE(link) constraint is
// the last line of defense against races: content/image/summary update only
// with non-empty values, published_at never regresses to null, retrieved_at
// always advances, is_read is left alone (sticky once set).
const upsertConflict = `ON CONFLICT(link) DO UPDATE SET
    title        = excluded.title,
    content      = CASE WHEN excluded.content <> '' THEN excluded.content ELSE articles.content END,
    source_name  = excluded.source_name,
    source_url   = excluded.source_url,
    published_at = COALESCE(excluded.published_at, articles.published_at),
    retrieved_at = excluded.retrieved_at,
    category     = excluded.category,
    image_url    = CASE WHEN excluded.image_url <> '' THEN excluded.image_url ELSE articles.image_url END,
    summary      = CASE WHEN excluded.summary <> '' THEN excluded.summary ELSE articles.summary END
RETURNING id`

var articleColumns = []string{
	"id", "title", "content", "link", "source_name", "source_url",
	"published_at", "retrieved_at", "category", "image_url", "is_read", "summary",
}

// Open connects to the articles database for the configured driver.
func Open(driver, dsn string) (*sql.DB, error) {
	switch driver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}

// SQLRepository persists articles via database/sql; it works over SQLite
// (embedded default) and Postgres, switching placeholder style per driver.
type SQLRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.ArticleRepository = (*SQLRepository)(nil)

// NewSQLRepository wires a sql.DB opened for the named driver.
func NewSQLRepository(db *sql.DB, driver string) *SQLRepository {
	builder := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if driver == "postgres" {
		builder = builder.PlaceholderFormat(sq.Dollar)
	}
	return &SQLRepository{db: db, sb: builder}
}

// InitSchema creates the articles table when absent.
func (r *SQLRepository) InitSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return &domain.StorageError{Op: "init schema", Err: err}
	}
	return nil
}

// UpsertBatch writes all articles in one transaction; any row failure rolls
// the whole batch back. Returns the stored id per article, in input order.
func (r *SQLRepository) UpsertBatch(ctx context.Context, articles []domain.Article) ([]string, error) {
	if len(articles) == 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &domain.StorageError{Op: "begin", Err: err}
	}
	defer tx.Rollback()

	ids := make([]string, 0, len(articles))
	for _, art := range articles {
		if art.Link == "" {
			return nil, &domain.StorageError{Op: "upsert", Err: fmt.Errorf("article %q has no link", art.Title)}
		}

		query, args, err := r.sb.
			Insert("articles").
			Columns(articleColumns...).
			Values(
				art.ID,
				art.Title,
				art.Content,
				art.Link,
				art.SourceName,
				art.SourceURL,
				nullableTime(art.PublishedAt),
				art.RetrievedAt.UTC().Format(time.RFC3339),
				art.Category,
				art.ImageURL,
				art.IsRead,
				art.Summary,
			).
			Suffix(upsertConflict).
			ToSql()
		if err != nil {
			return nil, &domain.StorageError{Op: "build upsert", Err: err}
		}

		var id string
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
			return nil, &domain.StorageError{Op: "upsert " + art.Link, Err: err}
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, &domain.StorageError{Op: "commit", Err: err}
	}
	return ids, nil
}

// GetByLink fetches one article by its unique link; nil when absent.
func (r *SQLRepository) GetByLink(ctx context.Context, link string) (*domain.Article, error) {
	query, args, err := r.sb.
		Select(articleColumns...).
		From("articles").
		Where(sq.Eq{"link": link}).
		ToSql()
	if err != nil {
		return nil, &domain.StorageError{Op: "build get", Err: err}
	}

	art, err := scanArticle(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.StorageError{Op: "get " + link, Err: err}
	}
	return &art, nil
}

// GetByLinks fetches the subset of links already persisted, keyed by link.
func (r *SQLRepository) GetByLinks(ctx context.Context, links []string) (map[string]domain.Article, error) {
	result := map[string]domain.Article{}
	if len(links) == 0 {
		return result, nil
	}

	query, args, err := r.sb.
		Select(articleColumns...).
		From("articles").
		Where(sq.Eq{"link": links}).
		ToSql()
	if err != nil {
		return nil, &domain.StorageError{Op: "build get links", Err: err}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.StorageError{Op: "query links", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		art, err := scanArticle(rows)
		if err != nil {
			return nil, &domain.StorageError{Op: "scan article", Err: err}
		}
		result[art.Link] = art
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "iterate links", Err: err}
	}
	return result, nil
}

// Query pages persisted articles, newest first; articles without a publish
// date sort last so time-ordering-dependent callers can cut them off.
func (r *SQLRepository) Query(ctx context.Context, q ports.ArticleQuery) ([]domain.Article, error) {
	builder := r.sb.
		Select(articleColumns...).
		From("articles").
		OrderBy("published_at IS NULL", "published_at DESC", "retrieved_at DESC")

	if q.Category != "" {
		builder = builder.Where(sq.Eq{"category": q.Category})
	}
	if q.UnreadOnly {
		builder = builder.Where(sq.Eq{"is_read": false})
	}
	if !q.Since.IsZero() {
		builder = builder.Where(sq.GtOrEq{"retrieved_at": q.Since.UTC().Format(time.RFC3339)})
	}
	if q.Limit > 0 {
		builder = builder.Limit(uint64(q.Limit))
	}
	if q.Offset > 0 {
		builder = builder.Offset(uint64(q.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, &domain.StorageError{Op: "build query", Err: err}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.StorageError{Op: "query articles", Err: err}
	}
	defer rows.Close()

	var articles []domain.Article
	for rows.Next() {
		art, err := scanArticle(rows)
		if err != nil {
			return nil, &domain.StorageError{Op: "scan article", Err: err}
		}
		articles = append(articles, art)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "iterate articles", Err: err}
	}
	return articles, nil
}

// SetReadStatus flips the read flag for one article; a single-row,
// immediately committed write independent of any batch.
func (r *SQLRepository) SetReadStatus(ctx context.Context, link string, read bool) error {
	query, args, err := r.sb.
		Update("articles").
		Set("is_read", read).
		Where(sq.Eq{"link": link}).
		ToSql()
	if err != nil {
		return &domain.StorageError{Op: "build read status", Err: err}
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return &domain.StorageError{Op: "set read status " + link, Err: err}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (domain.Article, error) {
	var (
		art         domain.Article
		publishedAt sql.NullString
		retrievedAt string
	)
	err := row.Scan(
		&art.ID,
		&art.Title,
		&art.Content,
		&art.Link,
		&art.SourceName,
		&art.SourceURL,
		&publishedAt,
		&retrievedAt,
		&art.Category,
		&art.ImageURL,
		&art.IsRead,
		&art.Summary,
	)
	if err != nil {
		return domain.Article{}, err
	}

	if publishedAt.Valid {
		if t, err := time.Parse(time.RFC3339, publishedAt.String); err == nil {
			utc := t.UTC()
			art.PublishedAt = &utc
		}
	}
	if t, err := time.Parse(time.RFC3339, retrievedAt); err == nil {
		art.RetrievedAt = t.UTC()
	}
	return art, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
