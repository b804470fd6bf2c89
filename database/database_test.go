package database

import (
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"webxcrawl/models"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("creating sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &Store{DB: db}, mock
}

func TestSavePageUpsertsAndReplacesLinks(t *testing.T) {
	store, mock := newMockStore(t)

	page := models.Page{
		ID:               "page1",
		URL:              "https://example.com/",
		Title:            "Example",
		FetchedAt:        time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ExtractorVersion: "v1",
		Mode:             models.ModeCompact,
		Source:           models.SourceStatic,
		Links: []models.Link{
			{URL: "https://example.com/a", Text: "A", IsInternal: true},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO pages")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM links WHERE from_page_id = $1")).WithArgs(page.ID).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO links")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.SavePage(page); err != nil {
		t.Fatalf("SavePage returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetPageByIDNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT page_json FROM pages WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	page, err := store.GetPageByID("missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page != nil {
		t.Fatalf("expected nil page, got %+v", page)
	}
}

func TestClaimNextQueueItemMarksProcessing(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "job_id", "url", "depth", "priority", "next_fetch_at", "domain", "status", "retries", "last_error"}).
		AddRow("q1", "job1", "https://example.com/", 0, 10, time.Now().UTC(), "example.com", "pending", 0, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE SKIP LOCKED")).WillReturnRows(rows)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE crawl_queue SET status = 'processing' WHERE id = $1")).
		WithArgs("q1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	item, err := store.ClaimNextQueueItem("job1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item == nil {
		t.Fatal("expected claimed item")
	}
	if item.Status != models.QueueProcessing {
		t.Fatalf("expected processing status, got %q", item.Status)
	}
}

func TestClaimNextQueueItemNoneAvailable(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE SKIP LOCKED")).WillReturnError(sql.ErrNoRows)

	item, err := store.ClaimNextQueueItem("job1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item != nil {
		t.Fatalf("expected no item, got %+v", item)
	}
}

func TestFailQueueItemRetriesThenFails(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE crawl_queue SET retries = retries + 1")).
		WithArgs("boom", "q1").
		WillReturnRows(sqlmock.NewRows([]string{"retries"}).AddRow(3))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE crawl_queue SET status = 'failed' WHERE id = $1")).
		WithArgs("q1").WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.FailQueueItem("q1", "boom"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFailQueueItemReschedulesUnderRetryCap(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE crawl_queue SET retries = retries + 1")).
		WithArgs("timeout", "q1").
		WillReturnRows(sqlmock.NewRows([]string{"retries"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE crawl_queue SET status = 'pending', next_fetch_at = $1 WHERE id = $2")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.FailQueueItem("q1", "timeout"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetCrawlJobStatsAggregatesCounts(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"status", "count"}).
		AddRow("pending", 3).
		AddRow("done", 5).
		AddRow("failed", 1)

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY status")).WithArgs("job1").WillReturnRows(rows)

	stats, err := store.GetCrawlJobStats("job1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Pending != 3 || stats.Done != 5 || stats.Failed != 1 || stats.Processing != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestEnqueueURLInsertOrIgnore(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (job_id, url) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.EnqueueURL("q1", "job1", "https://example.com/", 0, 10, "example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
