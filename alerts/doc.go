// Package alerts turns sync-core failures into at most one user-visible
// alert at a time.
//
// Classify sorts an error into the transport, server, migration or
// invariant class. Middleware shows transport and server failures through a
// Presenter and suppresses further alerts until the current one is
// dismissed, so a dropped connection failing many queries at once produces a
// single alert. Migration fallbacks and invariant violations are logged only.
package alerts
