package service

import (
	"context"
	"sort"

	"codexcity/internal/model"
	"codexcity/internal/repository"
)

type analyticsService struct {
	logRepo repository.EmailLogRepository
}

func NewAnalyticsService(logRepo repository.EmailLogRepository) AnalyticsService {
	return &analyticsService{logRepo: logRepo}
}

func (s *analyticsService) GetSummary(ctx context.Context, userID string) (*model.AnalyticsSummary, error) {
	logs, err := s.logRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := &model.AnalyticsSummary{ByCategory: []model.CategoryStat{}}
	if len(logs) == 0 {
		return summary, nil
	}

	byCategory := make(map[model.Category]*model.CategoryStat)
	confidenceTotal := 0
	for _, log := range logs {
		summary.TotalProcessed++
		confidenceTotal += log.ConfidenceScore

		stat, ok := byCategory[log.Category]
		if !ok {
			stat = &model.CategoryStat{Category: log.Category}
			byCategory[log.Category] = stat
		}
		stat.Count++

		if log.ResponseSent {
			summary.ResponsesSent++
			stat.Sent++
		}
		if summary.LastProcessedAt == nil || log.ProcessedAt.After(*summary.LastProcessedAt) {
			at := log.ProcessedAt
			summary.LastProcessedAt = &at
		}
	}

	summary.ResponseRate = float64(summary.ResponsesSent) / float64(summary.TotalProcessed)
	summary.AverageConfidence = float64(confidenceTotal) / float64(summary.TotalProcessed)

	for _, stat := range byCategory {
		summary.ByCategory = append(summary.ByCategory, *stat)
	}
	sort.Slice(summary.ByCategory, func(i, j int) bool {
		if summary.ByCategory[i].Count != summary.ByCategory[j].Count {
			return summary.ByCategory[i].Count > summary.ByCategory[j].Count
		}
		return summary.ByCategory[i].Category < summary.ByCategory[j].Category
	})

	return summary, nil
}

// ListLogs returns the newest logs first; limit <= 0 returns all.
func (s *analyticsService) ListLogs(ctx context.Context, userID string, limit int) ([]*model.EmailLog, error) {
	logs, err := s.logRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}
