// Package contact tracks a single named contact for the avoidance
// behaviors.
//
// Responsibilities: parsing node reports, validating that every kinematic
// field is present, extrapolating stale reports forward with a decaying
// linear model, grading relevance from range, and the behavior run-state
// lifecycle (idle, running, to-idle, completed).
// Key types: NodeReport, Tracker, Extrapolator, Grade, RunState.
//
// Missing inputs are never fatal here: they come back as *Warning values
// and the owning behavior sits the cycle out.
package contact
