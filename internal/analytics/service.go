package analytics

import (
	"context"
	"log"
	"time"

	"github.com/jwashb22/saas-analytics-pipeline/internal/caching"
	"github.com/jwashb22/saas-analytics-pipeline/internal/models"
)

const summaryTTL = 30 * time.Minute

// SummaryService aggregates headline statistics over a simulation result and
// caches the latest figures for the HTTP surface.
type SummaryService struct {
	cacheService caching.CacheService
}

// NewSummaryService creates a SummaryService. cacheService may be nil when no
// cache is wired (pure CLI runs).
func NewSummaryService(cacheService caching.CacheService) *SummaryService {
	return &SummaryService{cacheService: cacheService}
}

// Summarize computes retention, revenue, plan distribution, and final MRR
// from a simulation result. Revenue counts only successful transactions; plan
// distribution and MRR count only subscriptions still open at the end of the
// run.
func (s *SummaryService) Summarize(result *models.SimulationResult) *models.SimulationSummary {
	summary := &models.SimulationSummary{
		TotalCustomers:           len(result.Customers),
		TotalUsageEvents:         len(result.UsageEvents),
		TotalBillingTransactions: len(result.BillingTransactions),
		PlanDistribution:         make(map[string]int),
	}

	for _, c := range result.Customers {
		if c.Status == models.CustomerStatusChurned {
			summary.ChurnedCustomers++
		}
	}
	if summary.TotalCustomers > 0 {
		retained := summary.TotalCustomers - summary.ChurnedCustomers
		summary.RetentionRate = float64(retained) / float64(summary.TotalCustomers) * 100
	}

	for _, tx := range result.BillingTransactions {
		if tx.Status == models.BillingStatusSuccess {
			summary.TotalRevenue += tx.Amount
		}
	}

	for _, sub := range result.Subscriptions {
		if sub.Status == models.SubscriptionStatusActive {
			summary.PlanDistribution[sub.PlanName]++
			summary.FinalMRR += sub.MonthlyPrice
		}
	}

	return summary
}

// Refresh computes the summary and stores it in the cache.
func (s *SummaryService) Refresh(ctx context.Context, result *models.SimulationResult) (*models.SimulationSummary, error) {
	summary := s.Summarize(result)
	if s.cacheService == nil {
		return summary, nil
	}
	if err := s.cacheService.SetSummary(ctx, summary, summaryTTL); err != nil {
		log.Printf("failed to cache simulation summary: %v", err)
		return summary, err
	}
	return summary, nil
}

// Cached returns the latest cached summary, or nil when none is stored.
func (s *SummaryService) Cached(ctx context.Context) (*models.SimulationSummary, error) {
	if s.cacheService == nil {
		return nil, nil
	}
	return s.cacheService.GetSummary(ctx)
}
