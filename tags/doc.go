// Package tags provides the reverse index from resource tags to the query keys
// that depend on them.
//
// A Tag names a resource ("Customer:42") or a whole resource collection
// ("Customer:LIST"). Queries declare the tags their result depends on with
// SetProvidedTags; mutations name the tags they changed and KeysForTags
// resolves them to the set of affected query keys.
package tags
