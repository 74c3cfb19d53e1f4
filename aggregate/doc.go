// Package aggregate turns a raw entity list into the sorted, filtered and
// sectioned view a list screen renders.
//
// Every function is pure: the input slice is never modified and the same
// Spec applied to the same input yields identical output. Screens differ
// only in the Spec they pass, never in the algorithm.
package aggregate
