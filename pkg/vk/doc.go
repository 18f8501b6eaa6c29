// Package vk implements the rate-budgeted client for the VK API.
//
// All harvester components share one Client and, through it, one request
// budget. A call spends exactly one budget unit whether it succeeds or not.
//
// Error handling follows a three-way split:
//   - an error envelope with the expired-token code is returned as a typed
//     auth error and is globally fatal (the controller stops the run),
//   - any other envelope, malformed body, or transport fault is transient:
//     it is retried once after a fixed delay, and if the retry also fails the
//     typed error reaches the caller, which treats it as an empty page,
//   - a call made against an exhausted budget is refused with a budget error
//     without touching the network.
//
// Usage:
//
//	budget := ratelimit.NewBudget(cfg.Harvest.RequestBudget)
//	client := vk.NewClient(cfg, budget, logger.GetLogger())
//
//	page, err := client.GetWall(ctx, feedID, 0, 100)
//	if vk.IsAuthError(err) {
//	    // operator action required, abort the run
//	}
package vk
