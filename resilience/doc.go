// Package resilience provides the guards applied to every remote request.
//
//   - Timeout bounds how long one request may take.
//   - Bulkhead caps how many requests are in flight at once, so a screen that
//     opens many queries cannot starve the rest of the app.
//
// An Executor composes them. Nothing here retries: a failed request stays
// failed until the caller asks again.
//
//	exec := resilience.NewExecutor(
//	    resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 4})),
//	    resilience.WithTimeout(15*time.Second),
//	)
//
//	err := exec.Execute(ctx, func(ctx context.Context) error {
//	    return send(ctx)
//	})
package resilience
