package storage

import (
	"context"
	"testing"
	"time"

	"NewsRadar/internal/domain"
	"NewsRadar/internal/ports"
)

func newTestRepository(t *testing.T) *SQLRepository {
	t.Helper()

	db, err := Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// A fresh pool connection would see a fresh in-memory database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewSQLRepository(db, "sqlite")
	if err := repo.InitSchema(context.Background()); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return repo
}

func ptrTime(t time.Time) *time.Time { return &t }

func sampleArticle(id, link string) domain.Article {
	return domain.Article{
		ID:          id,
		Title:       "Title " + id,
		Content:     "Content " + id,
		Link:        link,
		SourceName:  "Wire",
		SourceURL:   "https://wire.example/feed.xml",
		PublishedAt: ptrTime(time.Date(2026, time.August, 24, 9, 0, 0, 0, time.UTC)),
		RetrievedAt: time.Date(2026, time.August, 24, 10, 0, 0, 0, time.UTC),
		Category:    "business",
	}
}

func TestUpsertInsertAndFetch(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t)
	ctx := context.Background()

	art := sampleArticle("a1", "https://wire.example/articles/1")
	ids, err := repo.UpsertBatch(ctx, []domain.Article{art})
	if err != nil {
		t.Fatalf("UpsertBatch: %v", err)
	}
	if len(ids) != 1 || ids[0] != "a1" {
		t.Fatalf("unexpected ids: %v", ids)
	}

	got, err := repo.GetByLink(ctx, art.Link)
	if err != nil {
		t.Fatalf("GetByLink: %v", err)
	}
	if got == nil {
		t.Fatalf("expected stored article")
	}
	if got.Title != art.Title || got.Category != "business" {
		t.Fatalf("unexpected stored article: %+v", got)
	}
	if got.PublishedAt == nil || !got.PublishedAt.Equal(*art.PublishedAt) {
		t.Fatalf("unexpected published_at: %v", got.PublishedAt)
	}

	missing, err := repo.GetByLink(ctx, "https://wire.example/unknown")
	if err != nil {
		t.Fatalf("GetByLink missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown link, got %+v", missing)
	}
}

func TestUpsertConflictKeepsOriginalID(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t)
	ctx := context.Background()
	link := "https://wire.example/articles/1"

	if _, err := repo.UpsertBatch(ctx, []domain.Article{sampleArticle("a1", link)}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	// Same link reappears with a freshly generated id; the stored row and its
	// id must survive.
	ids, err := repo.UpsertBatch(ctx, []domain.Article{sampleArticle("a2", link)})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if ids[0] != "a1" {
		t.Fatalf("conflict must return the stored id, got %s", ids[0])
	}

	rows, err := repo.Query(ctx, ports.ArticleQuery{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected a single row for the link, got %d", len(rows))
	}
}

func TestUpsertMergeRules(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t)
	ctx := context.Background()
	link := "https://wire.example/articles/1"

	first := sampleArticle("a1", link)
	first.ImageURL = "https://wire.example/img/1.jpg"
	first.Summary = "stored summary"
	if _, err := repo.UpsertBatch(ctx, []domain.Article{first}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := repo.SetReadStatus(ctx, link, true); err != nil {
		t.Fatalf("SetReadStatus: %v", err)
	}

	update := sampleArticle("a1", link)
	update.Title = "Updated title"
	update.Content = ""
	update.ImageURL = ""
	update.Summary = ""
	update.PublishedAt = nil
	update.RetrievedAt = first.RetrievedAt.Add(time.Hour)
	if _, err := repo.UpsertBatch(ctx, []domain.Article{update}); err != nil {
		t.Fatalf("update upsert: %v", err)
	}

	got, err := repo.GetByLink(ctx, link)
	if err != nil {
		t.Fatalf("GetByLink: %v", err)
	}

	if got.Title != "Updated title" {
		t.Fatalf("title must always refresh, got %q", got.Title)
	}
	if got.Content != first.Content {
		t.Fatalf("empty content must not clobber the stored body, got %q", got.Content)
	}
	if got.ImageURL != first.ImageURL || got.Summary != first.Summary {
		t.Fatalf("empty image/summary must not clobber stored values: %+v", got)
	}
	if got.PublishedAt == nil || !got.PublishedAt.Equal(*first.PublishedAt) {
		t.Fatalf("published_at must never regress to null, got %v", got.PublishedAt)
	}
	if !got.RetrievedAt.Equal(update.RetrievedAt) {
		t.Fatalf("retrieved_at must advance, got %v", got.RetrievedAt)
	}
	if !got.IsRead {
		t.Fatalf("is_read must stay sticky across upserts")
	}
}

func TestUpsertBatchIsAtomic(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t)
	ctx := context.Background()

	good := sampleArticle("a1", "https://wire.example/articles/1")
	// Same primary key, different link: the row conflicts outside the
	// ON CONFLICT(link) clause and fails the statement.
	bad := sampleArticle("a1", "https://wire.example/articles/2")

	if _, err := repo.UpsertBatch(ctx, []domain.Article{good, bad}); err == nil {
		t.Fatalf("expected batch failure")
	}

	got, err := repo.GetByLink(ctx, good.Link)
	if err != nil {
		t.Fatalf("GetByLink: %v", err)
	}
	if got != nil {
		t.Fatalf("failed batch must roll back completely, found %+v", got)
	}
}

func TestQueryFiltersAndOrdering(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t)
	ctx := context.Background()

	older := sampleArticle("a1", "https://wire.example/articles/1")
	older.PublishedAt = ptrTime(time.Date(2026, time.August, 23, 8, 0, 0, 0, time.UTC))
	newer := sampleArticle("a2", "https://wire.example/articles/2")
	newer.PublishedAt = ptrTime(time.Date(2026, time.August, 24, 8, 0, 0, 0, time.UTC))
	undated := sampleArticle("a3", "https://wire.example/articles/3")
	undated.PublishedAt = nil
	undated.Category = "science"

	if _, err := repo.UpsertBatch(ctx, []domain.Article{older, newer, undated}); err != nil {
		t.Fatalf("UpsertBatch: %v", err)
	}

	rows, err := repo.Query(ctx, ports.ArticleQuery{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].ID != "a2" || rows[1].ID != "a1" || rows[2].ID != "a3" {
		t.Fatalf("expected newest first with undated last, got %s,%s,%s", rows[0].ID, rows[1].ID, rows[2].ID)
	}

	science, err := repo.Query(ctx, ports.ArticleQuery{Category: "science"})
	if err != nil {
		t.Fatalf("Query category: %v", err)
	}
	if len(science) != 1 || science[0].ID != "a3" {
		t.Fatalf("category filter failed: %+v", science)
	}

	if err := repo.SetReadStatus(ctx, older.Link, true); err != nil {
		t.Fatalf("SetReadStatus: %v", err)
	}
	unread, err := repo.Query(ctx, ports.ArticleQuery{UnreadOnly: true})
	if err != nil {
		t.Fatalf("Query unread: %v", err)
	}
	if len(unread) != 2 {
		t.Fatalf("expected 2 unread rows, got %d", len(unread))
	}

	limited, err := repo.Query(ctx, ports.ArticleQuery{Limit: 1})
	if err != nil {
		t.Fatalf("Query limit: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "a2" {
		t.Fatalf("limit failed: %+v", limited)
	}
}

func TestGetByLinks(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t)
	ctx := context.Background()

	if _, err := repo.UpsertBatch(ctx, []domain.Article{
		sampleArticle("a1", "https://wire.example/articles/1"),
		sampleArticle("a2", "https://wire.example/articles/2"),
	}); err != nil {
		t.Fatalf("UpsertBatch: %v", err)
	}

	got, err := repo.GetByLinks(ctx, []string{
		"https://wire.example/articles/1",
		"https://wire.example/articles/404",
	})
	if err != nil {
		t.Fatalf("GetByLinks: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected only the persisted subset, got %d", len(got))
	}
	if _, ok := got["https://wire.example/articles/1"]; !ok {
		t.Fatalf("expected link 1 in result: %v", got)
	}

	empty, err := repo.GetByLinks(ctx, nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("empty input must return empty map, got %v, %v", empty, err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	t.Parallel()

	if _, err := Open("oracle", "dsn"); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}
