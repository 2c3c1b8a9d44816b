package analytics

import (
	"database/sql"
	"fmt"
	"time"
)

// Click is one recorded redirect, written by the outcome recorder and read by
// the dashboard queries.
type Click struct {
	ID           string `json:"id"`
	LinkID       string `json:"link_id"`
	Slug         string `json:"slug"`
	Timestamp    int64  `json:"timestamp"`
	Fingerprint  string `json:"fingerprint"`
	CountryCode  string `json:"country_code"`
	DeviceType   string `json:"device_type"`
	OS           string `json:"os"`
	Browser      string `json:"browser"`
	ReferrerHost string `json:"referrer_host"`
	Destination  string `json:"destination"`
	MatchedRule  string `json:"matched_rule"`
}

type DailyStat struct {
	Date           string `json:"date"`
	Clicks         int    `json:"clicks"`
	UniqueVisitors int    `json:"unique_visitors"`
	TopCountry     string `json:"top_country"`
	TopReferrer    string `json:"top_referrer"`
	TopDevice      string `json:"top_device"`
}

// VariantCounts summarizes an A/B test: how many recorded clicks landed on
// each variant destination.
type VariantCounts struct {
	VariantAClicks int `json:"variant_a_clicks"`
	VariantBClicks int `json:"variant_b_clicks"`
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) InsertClick(c *Click) error {
	query := `
		INSERT INTO clicks (
			id, link_id, slug, timestamp, fingerprint, country_code,
			device_type, os, browser, referrer_host, destination, matched_rule
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		c.ID,
		c.LinkID,
		c.Slug,
		c.Timestamp,
		c.Fingerprint,
		c.CountryCode,
		c.DeviceType,
		c.OS,
		c.Browser,
		c.ReferrerHost,
		c.Destination,
		c.MatchedRule,
	)
	return err
}

func (r *Repository) GetClicks(linkID string, start, end int64, limit, offset int) ([]Click, error) {
	query := `
		SELECT id, link_id, slug, timestamp, fingerprint, country_code,
		       device_type, os, browser, referrer_host, destination, matched_rule
		FROM clicks
		WHERE link_id = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?
	`
	rows, err := r.db.Query(query, linkID, start, end, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clicks []Click
	for rows.Next() {
		var c Click
		if err := rows.Scan(&c.ID, &c.LinkID, &c.Slug, &c.Timestamp, &c.Fingerprint,
			&c.CountryCode, &c.DeviceType, &c.OS, &c.Browser, &c.ReferrerHost,
			&c.Destination, &c.MatchedRule); err != nil {
			return nil, err
		}
		clicks = append(clicks, c)
	}
	return clicks, rows.Err()
}

// Breakdown returns click counts grouped by one dimension column.
func (r *Repository) Breakdown(linkID, dimension string, start, end int64) (map[string]int, error) {
	switch dimension {
	case "country_code", "device_type", "browser", "os", "referrer_host", "matched_rule":
	default:
		return nil, fmt.Errorf("unknown breakdown dimension %q", dimension)
	}

	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) FROM clicks
		WHERE link_id = ? AND timestamp >= ? AND timestamp <= ?
		GROUP BY %s
	`, dimension, dimension)

	rows, err := r.db.Query(query, linkID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		out[key] = count
	}
	return out, rows.Err()
}

// ABTestResults counts recorded clicks per variant destination.
func (r *Repository) ABTestResults(linkID, variantA, variantB string) (*VariantCounts, error) {
	var counts VariantCounts

	query := "SELECT COUNT(*) FROM clicks WHERE link_id = ? AND matched_rule = 'abtest' AND destination = ?"
	if err := r.db.QueryRow(query, linkID, variantA).Scan(&counts.VariantAClicks); err != nil {
		return nil, err
	}
	if err := r.db.QueryRow(query, linkID, variantB).Scan(&counts.VariantBClicks); err != nil {
		return nil, err
	}

	return &counts, nil
}

func (r *Repository) GetDailyStats(linkID string, startDate, endDate string) ([]DailyStat, error) {
	query := `
		SELECT date, clicks, unique_visitors, top_country, top_referrer, top_device
		FROM daily_stats
		WHERE link_id = ? AND date >= ? AND date <= ?
		ORDER BY date DESC
	`
	rows, err := r.db.Query(query, linkID, startDate, endDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []DailyStat
	for rows.Next() {
		var s DailyStat
		var topCountry, topReferrer, topDevice sql.NullString
		if err := rows.Scan(&s.Date, &s.Clicks, &s.UniqueVisitors, &topCountry, &topReferrer, &topDevice); err != nil {
			return nil, err
		}
		s.TopCountry = topCountry.String
		s.TopReferrer = topReferrer.String
		s.TopDevice = topDevice.String
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

func (r *Repository) ComputeDailyStats(linkID, date string) (*DailyStat, error) {
	startTime, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, err
	}
	startTs := startTime.Unix()
	endTs := startTime.Add(24 * time.Hour).Unix()

	stat := &DailyStat{Date: date}

	r.db.QueryRow("SELECT COUNT(*) FROM clicks WHERE link_id = ? AND timestamp >= ? AND timestamp < ?",
		linkID, startTs, endTs).Scan(&stat.Clicks)

	r.db.QueryRow("SELECT COUNT(DISTINCT fingerprint) FROM clicks WHERE link_id = ? AND timestamp >= ? AND timestamp < ?",
		linkID, startTs, endTs).Scan(&stat.UniqueVisitors)

	r.db.QueryRow(`
		SELECT country_code FROM clicks
		WHERE link_id = ? AND timestamp >= ? AND timestamp < ? AND country_code != ''
		GROUP BY country_code ORDER BY COUNT(*) DESC LIMIT 1
	`, linkID, startTs, endTs).Scan(&stat.TopCountry)

	r.db.QueryRow(`
		SELECT referrer_host FROM clicks
		WHERE link_id = ? AND timestamp >= ? AND timestamp < ? AND referrer_host != ''
		GROUP BY referrer_host ORDER BY COUNT(*) DESC LIMIT 1
	`, linkID, startTs, endTs).Scan(&stat.TopReferrer)

	r.db.QueryRow(`
		SELECT device_type FROM clicks
		WHERE link_id = ? AND timestamp >= ? AND timestamp < ?
		GROUP BY device_type ORDER BY COUNT(*) DESC LIMIT 1
	`, linkID, startTs, endTs).Scan(&stat.TopDevice)

	return stat, nil
}

func (r *Repository) UpsertDailyStats(stat *DailyStat, linkID string) error {
	query := `
		INSERT INTO daily_stats (id, link_id, date, clicks, unique_visitors, top_country, top_referrer, top_device, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(link_id, date) DO UPDATE SET
			clicks=excluded.clicks,
			unique_visitors=excluded.unique_visitors,
			top_country=excluded.top_country,
			top_referrer=excluded.top_referrer,
			top_device=excluded.top_device
	`
	id := fmt.Sprintf("%s_%s", linkID, stat.Date)

	_, err := r.db.Exec(query,
		id, linkID, stat.Date, stat.Clicks, stat.UniqueVisitors,
		stat.TopCountry, stat.TopReferrer, stat.TopDevice,
		time.Now().Unix(),
	)
	return err
}

// LinkIDs lists link IDs with at least one click on the given day, for the
// daily aggregation worker.
func (r *Repository) LinkIDsWithClicks(date string) ([]string, error) {
	startTime, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, err
	}
	startTs := startTime.Unix()
	endTs := startTime.Add(24 * time.Hour).Unix()

	rows, err := r.db.Query("SELECT DISTINCT link_id FROM clicks WHERE timestamp >= ? AND timestamp < ?", startTs, endTs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
