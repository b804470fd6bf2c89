package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"webxcrawl/models"
)

// CreateCrawlJob inserts a new job in pending status, id =
// sha256_16(seedUrls.join("|") + ":" + now) per spec §4.6.
func (s *Store) CreateCrawlJob(id string, seedURLs []string, options models.CrawlOptions) (*models.CrawlJob, error) {
	seedJSON, err := marshalJSON(seedURLs)
	if err != nil {
		return nil, fmt.Errorf("marshaling seed urls: %w", err)
	}
	optionsJSON, err := marshalJSON(options)
	if err != nil {
		return nil, fmt.Errorf("marshaling options: %w", err)
	}

	job := models.CrawlJob{
		ID:        id,
		Status:    models.JobPending,
		SeedURLs:  seedURLs,
		Options:   options,
		CreatedAt: time.Now().UTC(),
	}

	_, err = s.DB.Exec(`
		INSERT INTO crawl_jobs (id, status, seed_url_json, created_at, options_json)
		VALUES ($1, $2, $3, $4, $5)
	`, job.ID, string(job.Status), seedJSON, job.CreatedAt, optionsJSON)
	if err != nil {
		return nil, fmt.Errorf("inserting crawl job: %w", err)
	}
	return &job, nil
}

// SetCrawlJobStatus transitions a job's status, stamping finished_at when
// the new status is terminal (finished or failed).
func (s *Store) SetCrawlJobStatus(id string, status models.JobStatus) error {
	if status == models.JobFinished || status == models.JobFailed {
		_, err := s.DB.Exec(`
			UPDATE crawl_jobs SET status = $1, finished_at = $2 WHERE id = $3
		`, string(status), time.Now().UTC(), id)
		return err
	}
	_, err := s.DB.Exec(`UPDATE crawl_jobs SET status = $1 WHERE id = $2`, string(status), id)
	return err
}

// GetCrawlJob loads a job by id, or nil if it doesn't exist.
func (s *Store) GetCrawlJob(id string) (*models.CrawlJob, error) {
	var job models.CrawlJob
	var seedJSON, optionsJSON []byte
	var finishedAt sql.NullTime

	err := s.DB.QueryRow(`
		SELECT id, status, seed_url_json, created_at, finished_at, options_json
		FROM crawl_jobs WHERE id = $1
	`, id).Scan(&job.ID, &job.Status, &seedJSON, &job.CreatedAt, &finishedAt, &optionsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying crawl job: %w", err)
	}
	if finishedAt.Valid {
		job.FinishedAt = &finishedAt.Time
	}
	if err := unmarshalJSON(seedJSON, &job.SeedURLs); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(optionsJSON, &job.Options); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListActiveCrawlJobs returns jobs in pending or running status, oldest
// first.
func (s *Store) ListActiveCrawlJobs() ([]models.CrawlJob, error) {
	rows, err := s.DB.Query(`
		SELECT id, status, seed_url_json, created_at, finished_at, options_json
		FROM crawl_jobs WHERE status IN ('pending', 'running')
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying active jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.CrawlJob
	for rows.Next() {
		var job models.CrawlJob
		var seedJSON, optionsJSON []byte
		var finishedAt sql.NullTime
		if err := rows.Scan(&job.ID, &job.Status, &seedJSON, &job.CreatedAt, &finishedAt, &optionsJSON); err != nil {
			return nil, fmt.Errorf("scanning job row: %w", err)
		}
		if finishedAt.Valid {
			job.FinishedAt = &finishedAt.Time
		}
		if err := unmarshalJSON(seedJSON, &job.SeedURLs); err != nil {
			return nil, err
		}
		if err := unmarshalJSON(optionsJSON, &job.Options); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// EnqueueURL inserts a frontier item, id = sha256_16("jobId:url"),
// insert-or-ignore per the §3 dedupe invariant.
func (s *Store) EnqueueURL(id, jobID, url string, depth, priority int, domain string) error {
	_, err := s.DB.Exec(`
		INSERT INTO crawl_queue (id, job_id, url, depth, priority, next_fetch_at, domain, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending')
		ON CONFLICT (job_id, url) DO NOTHING
	`, id, jobID, url, depth, priority, time.Now().UTC(), domain)
	return err
}

// ClaimNextQueueItem atomically claims one pending, due row for jobID,
// ordered priority DESC, depth ASC, next_fetch_at ASC, using
// SELECT ... FOR UPDATE SKIP LOCKED so concurrent claimers never collide —
// this is the resolution of spec §5's atomic-claim Open Question.
func (s *Store) ClaimNextQueueItem(jobID string) (*models.CrawlQueueItem, error) {
	tx, err := s.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning claim transaction: %w", err)
	}
	defer tx.Rollback()

	var item models.CrawlQueueItem
	var lastError sql.NullString

	err = tx.QueryRow(`
		SELECT id, job_id, url, depth, priority, next_fetch_at, domain, status, retries, last_error
		FROM crawl_queue
		WHERE job_id = $1 AND status = 'pending' AND next_fetch_at <= $2
		ORDER BY priority DESC, depth ASC, next_fetch_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`, jobID, time.Now().UTC()).Scan(
		&item.ID, &item.JobID, &item.URL, &item.Depth, &item.Priority,
		&item.NextFetchAt, &item.Domain, &item.Status, &item.Retries, &lastError,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("selecting claim candidate: %w", err)
	}
	if lastError.Valid {
		item.LastError = lastError.String
	}

	if _, err := tx.Exec(`UPDATE crawl_queue SET status = 'processing' WHERE id = $1`, item.ID); err != nil {
		return nil, fmt.Errorf("marking item processing: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}

	item.Status = models.QueueProcessing
	return &item, nil
}

// CompleteQueueItem transitions processing → done.
func (s *Store) CompleteQueueItem(id string) error {
	_, err := s.DB.Exec(`UPDATE crawl_queue SET status = 'done' WHERE id = $1`, id)
	return err
}

const maxQueueRetries = 3
const failQueueRetryDelayMs = 1500

// FailQueueItem increments retries and either terminally fails the item
// (retries >= 3) or reschedules it with linear backoff:
// next_fetch_at = now + retries*retryDelayMs.
func (s *Store) FailQueueItem(id, errMsg string) error {
	var retries int
	err := s.DB.QueryRow(`
		UPDATE crawl_queue SET retries = retries + 1, last_error = $1
		WHERE id = $2
		RETURNING retries
	`, errMsg, id).Scan(&retries)
	if err != nil {
		return fmt.Errorf("incrementing retries: %w", err)
	}

	if retries >= maxQueueRetries {
		_, err := s.DB.Exec(`UPDATE crawl_queue SET status = 'failed' WHERE id = $1`, id)
		return err
	}

	nextFetchAt := time.Now().UTC().Add(time.Duration(retries*failQueueRetryDelayMs) * time.Millisecond)
	_, err = s.DB.Exec(`
		UPDATE crawl_queue SET status = 'pending', next_fetch_at = $1 WHERE id = $2
	`, nextFetchAt, id)
	return err
}

// GetCrawlJobStats aggregates queue-item counts per status for a job.
func (s *Store) GetCrawlJobStats(jobID string) (models.CrawlJobStats, error) {
	rows, err := s.DB.Query(`
		SELECT status, COUNT(*) FROM crawl_queue WHERE job_id = $1 GROUP BY status
	`, jobID)
	if err != nil {
		return models.CrawlJobStats{}, fmt.Errorf("querying job stats: %w", err)
	}
	defer rows.Close()

	var stats models.CrawlJobStats
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return models.CrawlJobStats{}, fmt.Errorf("scanning stat row: %w", err)
		}
		switch status {
		case "pending":
			stats.Pending = count
		case "processing":
			stats.Processing = count
		case "done":
			stats.Done = count
		case "failed":
			stats.Failed = count
		}
	}
	return stats, rows.Err()
}

// GetCrawlPages joins done queue items to their pages for jobID, newest
// first.
func (s *Store) GetCrawlPages(jobID string, limit int) ([]models.Page, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.Query(`
		SELECT p.page_json
		FROM crawl_queue q
		JOIN pages p ON p.url = q.url
		WHERE q.job_id = $1 AND q.status = 'done'
		ORDER BY p.fetched_at DESC
		LIMIT $2
	`, jobID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying crawl pages: %w", err)
	}
	defer rows.Close()

	var pages []models.Page
	for rows.Next() {
		var pageJSON []byte
		if err := rows.Scan(&pageJSON); err != nil {
			return nil, fmt.Errorf("scanning crawl page: %w", err)
		}
		page, err := decodePage(pageJSON)
		if err != nil {
			return nil, err
		}
		pages = append(pages, *page)
	}
	return pages, rows.Err()
}

func unmarshalJSON(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
