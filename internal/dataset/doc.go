// Package dataset defines the measurement rows fitted by the estimator and
// their CSV wire form.
//
// A Measurement pairs a circle's diameter with its circumference, labelled
// by the specimen it was taken from. A Dataset is an ordered slice of them;
// order only matters for display.
//
// # Wire Format
//
// Datasets cross process boundaries as CSV with the header
//
//	Name,Diameter,Circumference
//
// Names are always quoted with embedded double quotes doubled. Numbers are
// plain decimal text and an empty field means the value is missing.
//
// # Coercion
//
// Rows arrive untyped (RawMeasurement). Coerce turns them into Measurements
// and rejects any value that is not a finite real number. Rejected rows are
// reported, never zeroed or skipped.
package dataset
