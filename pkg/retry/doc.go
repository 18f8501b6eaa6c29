// Package retry provides retry logic for transient failures in VK API calls.
//
// The harvester's policy is deliberately conservative: a failing call is
// retried exactly once after a fixed delay, and if the retry also fails the
// result is treated as an empty page rather than an error that aborts the
// run. Expired-credential errors are never retried.
//
// Basic usage:
//
//	err := retry.Do(func() error {
//		return client.FetchPage(offset)
//	}, nil)
//
//	// Custom configuration
//	cfg := &retry.Config{
//		MaxAttempts: 2,
//		Backoff:     &retry.ConstantBackoff{Delay: 3 * time.Second},
//		RetryIf:     vk.IsTransient,
//		Logger:      logger.GetLogger(),
//	}
//	err := retry.Do(operation, cfg)
package retry
