// Package fit estimates π by regressing circumference on diameter.
//
// A Fitter always computes an ordinary least-squares line over all rows,
// ignoring which specimen they came from. When a request asks for a
// mixed-effects tier and allows it, the Fitter also tries a linear mixed
// model through its MixedEffectsEngine. That attempt is reported in
// Report.Mixed, but the returned Result is the least-squares line whenever
// that line can be computed. WithPreferMixed changes this so a successful
// mixed fit is returned instead.
//
// # Capabilities
//
// Whether mixed-effects fitting is possible is decided once, when the
// Fitter is built, by probing the engine. Sandboxed builds pass Unavailable
// (or nil) and every mixed request then reports
// "mixed-effects model not available in this environment".
//
// # Errors
//
// Fit never returns an error value and never panics on bad input. Every
// failure becomes a Result with OK=false and a human-readable Message.
// Report.Err carries the typed *Error for callers that need to classify it.
package fit
