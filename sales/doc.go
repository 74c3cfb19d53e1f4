// Package sales is the endpoint catalog of the sales API.
//
// Each read is a cache.Query that declares the tags its result provides
// (the type's LIST tag plus one tag per returned entity); each write is a
// cache.Mutation that declares the tags it invalidates. A create always
// invalidates the LIST tag of its type, since no query can depend on an id
// that did not exist yet.
//
// Entities implement aggregate.Fielder so list screens can sort, filter and
// section them with the Spec returned by the matching *ListSpec function.
package sales
