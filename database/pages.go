package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"webxcrawl/models"
)

// SavePage atomically upserts a page and replaces its outbound link set,
// grounded on the teacher's SavePage (INSERT ... ON CONFLICT ... RETURNING)
// widened into a transaction that also rewrites links(from_page_id, ...).
func (s *Store) SavePage(page models.Page) error {
	pageJSON, err := marshalJSON(page)
	if err != nil {
		return fmt.Errorf("marshaling page: %w", err)
	}

	tx, err := s.DB.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO pages (id, url, canonical_url, title, fetched_at, content_hash, extractor_version, mode, source, page_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			url = EXCLUDED.url,
			canonical_url = EXCLUDED.canonical_url,
			title = EXCLUDED.title,
			fetched_at = EXCLUDED.fetched_at,
			content_hash = EXCLUDED.content_hash,
			extractor_version = EXCLUDED.extractor_version,
			mode = EXCLUDED.mode,
			source = EXCLUDED.source,
			page_json = EXCLUDED.page_json
	`, page.ID, page.URL, nullableString(page.CanonicalURL), page.Title, page.FetchedAt,
		nullableString(page.ContentHash), page.ExtractorVersion, string(page.Mode), string(page.Source), pageJSON)
	if err != nil {
		return fmt.Errorf("upserting page: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM links WHERE from_page_id = $1`, page.ID); err != nil {
		return fmt.Errorf("clearing links: %w", err)
	}

	seen := map[string]bool{}
	for _, link := range page.Links {
		if seen[link.URL] {
			continue
		}
		seen[link.URL] = true
		isInternal := 0
		if link.IsInternal {
			isInternal = 1
		}
		_, err := tx.Exec(`
			INSERT INTO links (from_page_id, to_url, text, rel, is_internal)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (from_page_id, to_url) DO NOTHING
		`, page.ID, link.URL, link.Text, nullableString(link.Rel), isInternal)
		if err != nil {
			return fmt.Errorf("inserting link: %w", err)
		}
	}

	return tx.Commit()
}

// GetPageByID returns the page stored under id, or nil if it doesn't exist.
func (s *Store) GetPageByID(id string) (*models.Page, error) {
	var pageJSON []byte
	err := s.DB.QueryRow(`SELECT page_json FROM pages WHERE id = $1`, id).Scan(&pageJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying page: %w", err)
	}
	return decodePage(pageJSON)
}

// GetLatestPageByURL returns the most recently fetched row for url, or nil.
func (s *Store) GetLatestPageByURL(url string) (*models.Page, error) {
	var pageJSON []byte
	err := s.DB.QueryRow(`
		SELECT page_json FROM pages WHERE url = $1 ORDER BY fetched_at DESC LIMIT 1
	`, url).Scan(&pageJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest page: %w", err)
	}
	return decodePage(pageJSON)
}

// QueryPages performs a substring scan over title and the serialized page
// body, returning hits newest first and scoring each by its position in that
// list: score = max(0, 1 - 0.05*rank).
func (s *Store) QueryPages(query string, limit int) ([]models.PageSearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.Query(`
		SELECT page_json FROM pages
		WHERE title ILIKE $1 OR page_json::text ILIKE $1
		ORDER BY fetched_at DESC
		LIMIT $2
	`, "%"+query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("querying pages: %w", err)
	}
	defer rows.Close()

	var results []models.PageSearchResult
	rank := 0
	for rows.Next() {
		var pageJSON []byte
		if err := rows.Scan(&pageJSON); err != nil {
			return nil, fmt.Errorf("scanning page: %w", err)
		}
		page, err := decodePage(pageJSON)
		if err != nil {
			return nil, err
		}
		score := math.Max(0, 1-0.05*float64(rank))
		results = append(results, models.PageSearchResult{Page: *page, Score: score})
		rank++
	}
	return results, rows.Err()
}

func decodePage(raw []byte) (*models.Page, error) {
	var page models.Page
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("decoding page_json: %w", err)
	}
	return &page, nil
}

func nullableString(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
