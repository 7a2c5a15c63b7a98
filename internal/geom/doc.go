// Package geom provides the planar geometry primitives used by the
// avoidance engine.
//
// Conventions: positions are metres in a local x/y frame, headings are
// degrees with 0 pointing along +y (north) and 90 along +x (east). Every
// function accepts headings outside [0,360) and normalises them first.
//
// Axis-aligned headings (0, 90, 180, 270) go through the same formulas as
// any other heading; comparisons that must treat "exactly on a line" use
// the tolerances defined here rather than float equality.
package geom
