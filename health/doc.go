// Package health tells the sync core whether the sales API is reachable.
//
// A Checker reports one component as healthy, degraded or unhealthy.
// APIChecker probes the remote API through the transport client, and
// BackendChecker probes the snapshot backend. An Aggregator runs several
// checkers and folds their results into one status.
//
// Connectivity polls a checker and fires callbacks on transitions: the
// offline to online edge is what drives refetch-on-reconnect in the cache
// engine.
//
//	conn := health.NewConnectivity(health.NewAPIChecker(client, "/health"),
//	    health.WithInterval(10*time.Second),
//	    health.OnReconnect(engine.Reconnected))
//	go conn.Run(ctx)
package health
