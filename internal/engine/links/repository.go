package links

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const linkColumns = `id, slug, destination_url, title, created_by, redirect_type,
	rules, status, expires_at, max_clicks, password_hash, click_count,
	last_click_at, created_at, updated_at`

func (r *Repository) Create(link *Link) error {
	query := `
		INSERT INTO links (
			id, slug, destination_url, title, created_by, redirect_type,
			rules, status, expires_at, max_clicks, password_hash, click_count,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	rulesJSON, _ := json.Marshal(link.Rules)

	_, err := r.db.Exec(query,
		link.ID,
		link.Slug,
		link.DestinationURL,
		link.Title,
		link.CreatedBy,
		link.RedirectType,
		string(rulesJSON),
		link.Status,
		link.ExpiresAt,
		link.MaxClicks,
		link.PasswordHash,
		link.ClickCount,
		link.CreatedAt,
		link.UpdatedAt,
	)

	return err
}

func (r *Repository) GetByID(id string) (*Link, error) {
	row := r.db.QueryRow(`SELECT `+linkColumns+` FROM links WHERE id = ?`, id)
	return scanLink(row)
}

func (r *Repository) GetBySlug(slug string) (*Link, error) {
	row := r.db.QueryRow(`SELECT `+linkColumns+` FROM links WHERE slug = ?`, slug)
	return scanLink(row)
}

func (r *Repository) ExistsBySlug(slug string) (bool, error) {
	var exists bool
	err := r.db.QueryRow("SELECT EXISTS(SELECT 1 FROM links WHERE slug = ?)", slug).Scan(&exists)
	return exists, err
}

func (r *Repository) Update(link *Link) error {
	query := `
		UPDATE links SET
			destination_url = ?, title = ?, redirect_type = ?, rules = ?,
			status = ?, expires_at = ?, max_clicks = ?, password_hash = ?,
			updated_at = ?
		WHERE id = ?
	`

	rulesJSON, _ := json.Marshal(link.Rules)

	_, err := r.db.Exec(query,
		link.DestinationURL,
		link.Title,
		link.RedirectType,
		string(rulesJSON),
		link.Status,
		link.ExpiresAt,
		link.MaxClicks,
		link.PasswordHash,
		time.Now().Unix(),
		link.ID,
	)
	return err
}

func (r *Repository) Archive(id string) error {
	_, err := r.db.Exec("UPDATE links SET status = 'archived' WHERE id = ?", id)
	return err
}

// TryIncrementClickCount bumps the counter unless the link already hit its
// click ceiling. The compare happens inside the UPDATE, so concurrent
// redirects cannot push the stored counter past max_clicks; a burst served
// from a stale cache snapshot can still deliver a few extra redirects, which
// is the accepted relaxation.
func (r *Repository) TryIncrementClickCount(id string) (bool, error) {
	query := `
		UPDATE links SET click_count = click_count + 1, last_click_at = ?
		WHERE id = ? AND (max_clicks IS NULL OR click_count < max_clicks)
	`
	res, err := r.db.Exec(query, time.Now().Unix(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Repository) List(limit, offset int) ([]*Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := r.db.Query(query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, link)
	}
	return out, rows.Err()
}

// AllSlugs feeds the slug bloom filter at startup.
func (r *Repository) AllSlugs() ([]string, error) {
	rows, err := r.db.Query("SELECT slug FROM links WHERE status != 'archived'")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		slugs = append(slugs, s)
	}
	return slugs, rows.Err()
}

// ArchiveExpired sweeps links whose expiry has passed. Returns the number archived.
func (r *Repository) ArchiveExpired(now int64) (int64, error) {
	res, err := r.db.Exec(
		"UPDATE links SET status = 'archived' WHERE expires_at IS NOT NULL AND expires_at < ? AND status = 'active'",
		now,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanLink(s interface {
	Scan(dest ...interface{}) error
}) (*Link, error) {
	var link Link
	var rulesRaw []byte
	var expiresAt, maxClicks, lastClickAt sql.NullInt64

	err := s.Scan(
		&link.ID,
		&link.Slug,
		&link.DestinationURL,
		&link.Title,
		&link.CreatedBy,
		&link.RedirectType,
		&rulesRaw,
		&link.Status,
		&expiresAt,
		&maxClicks,
		&link.PasswordHash,
		&link.ClickCount,
		&lastClickAt,
		&link.CreatedAt,
		&link.UpdatedAt,
	)

	if err != nil {
		return nil, err
	}

	if expiresAt.Valid {
		val := expiresAt.Int64
		link.ExpiresAt = &val
	}
	if maxClicks.Valid {
		val := maxClicks.Int64
		link.MaxClicks = &val
	}
	if lastClickAt.Valid {
		val := lastClickAt.Int64
		link.LastClickAt = &val
	}

	// A corrupt rules column degrades to a rules-free link: the redirect still
	// works against the default destination.
	if len(rulesRaw) > 0 {
		if err := json.Unmarshal(rulesRaw, &link.Rules); err != nil {
			log.Warn().Err(err).Str("slug", link.Slug).Msg("unreadable rules column ignored")
			link.Rules = nil
		}
	}

	return &link, nil
}
