// Package build holds the types shared by every build stage: target
// identifiers, per-target results and the error taxonomy used to classify
// strategy failures into outcomes.
package build
