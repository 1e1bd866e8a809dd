// Package codec converts fit results to and from the single-line text form
// used whenever a result crosses from the numeric engine to its host.
//
// A line has four fields separated by '|':
//
//	TRUE|linear model fitted|3.14|0
//	FALSE|Need at least 2 observations|NA|NA
//
// The first field is TRUE or FALSE, the second is the human-readable message
// with every '|' replaced by '/', and the last two are the slope and
// intercept in shortest round-trip decimal form, or NA when absent.
//
// The mapping is lossy by construction: a message containing '|' comes back
// with '/' in its place. Everything else round-trips exactly.
//
// Transports tend to wrap the line in a container of their own (a JSON array
// of one string, a byte slice, a trailing newline). [Unwrap] strips those
// before [Decode] splits the line, and [DecodePayload] does both.
package codec
