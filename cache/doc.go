// Package cache provides the query cache engine.
//
// An Engine maps deterministic query keys to cached entries, de-duplicates
// concurrent fetches of the same key, keeps entries alive while they have
// subscribers, and refetches or evicts entries when a mutation invalidates
// the tags they provide. Reset tears the whole cache down between sessions.
package cache
