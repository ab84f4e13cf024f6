// Package resource implements admission control for the query path.
//
// A Controller bounds three things:
//
//   - Concurrency: the number of queries scanning at the same time (weighted semaphore)
//   - Rate: queries admitted per second (token bucket)
//   - Memory: scratch memory reserved by running scans (fail-fast)
//
// Example:
//
//	rc := resource.NewController(resource.Config{
//	    MaxConcurrentQueries: 16,
//	    QueriesPerSecond:     500,
//	})
//
//	release, err := rc.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	defer release()
//
// All methods are safe for concurrent use. A nil *Controller admits
// everything.
package resource
