package analytics

type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetClickHistory(linkID string, start, end int64, limit, offset int) ([]Click, error) {
	return s.repo.GetClicks(linkID, start, end, limit, offset)
}

func (s *Service) GetBreakdown(linkID, dimension string, start, end int64) (map[string]int, error) {
	return s.repo.Breakdown(linkID, dimension, start, end)
}

func (s *Service) GetStatsOverview(linkID string, startDate, endDate string) ([]DailyStat, error) {
	return s.repo.GetDailyStats(linkID, startDate, endDate)
}

func (s *Service) GetABTestResults(linkID, variantA, variantB string) (*VariantCounts, error) {
	return s.repo.ABTestResults(linkID, variantA, variantB)
}
