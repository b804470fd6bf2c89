package crawler

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"webxcrawl/database"
	"webxcrawl/models"
	"webxcrawl/robots"
)

func newTestEngine(t *testing.T) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("creating sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	store := &database.Store{DB: db}
	return NewEngine(store, nil, "WebxCrawler/1.0"), mock
}

func TestStartRejectsAllInvalidSeeds(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.Start([]string{"not a url", "ftp://example.com/file"}, models.CrawlOptionsInput{})
	if err == nil {
		t.Fatal("expected error for all-invalid seed set")
	}
	crawlErr, ok := err.(*Error)
	if !ok || crawlErr.Kind != KindValidation {
		t.Fatalf("expected Validation error, got %v", err)
	}
}

func TestStartCreatesJobAndEnqueuesSeeds(t *testing.T) {
	engine, mock := newTestEngine(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO crawl_jobs")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO crawl_queue")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE crawl_jobs SET status = $1 WHERE id = $2")).WillReturnResult(sqlmock.NewResult(0, 1))

	jobID, err := engine.Start([]string{"https://Example.com/docs/?utm_source=x"}, models.CrawlOptionsInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if jobID == "" || len(jobID) != 16 {
		t.Fatalf("expected 16-char job id, got %q", jobID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStatusReturnsUnknownJobError(t *testing.T) {
	engine, mock := newTestEngine(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM crawl_jobs WHERE id = $1")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "seed_url_json", "created_at", "finished_at", "options_json"}))

	_, err := engine.Status("missing-job")
	if err == nil {
		t.Fatal("expected unknown job error")
	}
	crawlErr, ok := err.(*Error)
	if !ok || crawlErr.Kind != KindJobUnknown {
		t.Fatalf("expected JobUnknown error, got %v", err)
	}
}

func TestShouldQueueRespectsAllowDenyAndSeedHosts(t *testing.T) {
	seedHosts := map[string]bool{"example.com": true}

	if !shouldQueue("https://example.com/docs", nil, nil, seedHosts) {
		t.Fatal("expected seed-host URL to be admissible")
	}
	if shouldQueue("https://other.com/docs", nil, nil, seedHosts) {
		t.Fatal("expected non-seed-host URL to be rejected without allowDomains")
	}
	if !shouldQueue("https://other.com/docs", []string{"other.com"}, nil, seedHosts) {
		t.Fatal("expected allowDomains to admit a non-seed host")
	}
	if shouldQueue("https://example.com/docs", nil, []string{"example.com"}, seedHosts) {
		t.Fatal("expected denyDomains to reject even a seed host")
	}
	if shouldQueue("https://example.com/login", nil, nil, seedHosts) {
		t.Fatal("expected nuisance path to be rejected")
	}
	if shouldQueue("https://example.com/image.png", nil, nil, seedHosts) {
		t.Fatal("expected binary extension to be rejected")
	}
}

func TestSchedulerObserveLatencyRunningMean(t *testing.T) {
	s := NewScheduler("test-agent")
	s.observeLatency("example.com", 100)
	s.observeLatency("example.com", 200)
	if avg := s.avgLatency("example.com"); avg != 150 {
		t.Fatalf("expected running mean 150, got %d", avg)
	}
}

func TestSchedulerMarkInitializedOnce(t *testing.T) {
	s := NewScheduler("test-agent")
	if s.markInitialized("job1") {
		t.Fatal("expected first call to report not-yet-initialized")
	}
	if !s.markInitialized("job1") {
		t.Fatal("expected second call to report already-initialized")
	}
}

func TestPolitenessWaitSkipsWhenNoPriorFetch(t *testing.T) {
	engine, _ := newTestEngine(t)

	start := time.Now()
	err := engine.politenessWait(context.Background(), "example.com", robots.Rules{}, 500, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Fatal("expected no wait on first fetch for a domain")
	}
}
