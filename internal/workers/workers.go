package workers

import (
	"time"

	"github.com/rs/zerolog/log"

	"edgelink/internal/engine/analytics"
	"edgelink/internal/engine/links"
)

// AggregateDailyStats rolls the previous day's clicks into the daily_stats
// table for every link that saw traffic.
func AggregateDailyStats(repo *analytics.Repository, date string) error {
	if date == "" {
		date = time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	}

	linkIDs, err := repo.LinkIDsWithClicks(date)
	if err != nil {
		return err
	}

	for _, linkID := range linkIDs {
		stat, err := repo.ComputeDailyStats(linkID, date)
		if err != nil {
			log.Error().Err(err).Str("link_id", linkID).Str("date", date).Msg("daily stats computation failed")
			continue
		}
		if err := repo.UpsertDailyStats(stat, linkID); err != nil {
			log.Error().Err(err).Str("link_id", linkID).Str("date", date).Msg("daily stats upsert failed")
		}
	}

	log.Info().Str("date", date).Int("links", len(linkIDs)).Msg("daily stats aggregated")
	return nil
}

// ExpireLinks archives links whose expiry timestamp has passed. The redirect
// path also blocks expired links on read, so this sweep is housekeeping, not
// the enforcement point.
func ExpireLinks(repo *links.Repository) {
	n, err := repo.ArchiveExpired(time.Now().Unix())
	if err != nil {
		log.Error().Err(err).Msg("link expiry sweep failed")
		return
	}
	if n > 0 {
		log.Info().Int64("archived", n).Msg("expired links archived")
	}
}
