// Package ratelimit provides the request budget for the harvester.
//
// The VK API allows a limited number of calls per token per day, so a harvest
// run is handed a fixed budget up front and rations it across post and
// comment pagination. The budget is the only throttling mechanism: there is
// no time-based limiter, a run simply stops early once the budget is spent
// and the next run resumes from the persisted high-water marks.
//
// Usage:
//
//	budget := ratelimit.NewBudget(4500)
//
//	if budget.Spend() {
//	    // Proceed with the API call
//	} else {
//	    // Budget exhausted, stop paging
//	}
//
//	logger.WithField("budget_remaining", budget.Remaining()).Info("page fetched")
package ratelimit
