// SPDX-FileCopyrightText : © 2024-2025 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

// Package lin provides the small linear algebra kit used by the engine:
// float32 vectors, quaternions, and 4x3 affine transforms. GPU's consume
// float32, so unlike general purpose math libraries there is no float64
// mirror and no conversion layer.
//
// Package lin is provided as part of the sfg rendering engine SDK.
package lin

import "math"

// Epsilon distinguishes engine float32 values that are close enough
// to be considered equal.
const Epsilon = 1e-6

// Aeq almost-equals returns true when the two values differ by less
// than Epsilon. Used where exact float comparison would fail.
func Aeq(a, b float32) bool { return Abs(a-b) < Epsilon }

// Abs returns the absolute value of x.
func Abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

// Sqrt returns the square root of x.
func Sqrt(x float32) float32 { return float32(math.Sqrt(float64(x))) }

// Lerp linearly interpolates from a to b by fraction t.
func Lerp(a, b, t float32) float32 { return a + (b-a)*t }

// Clamp limits x to the range [lo, hi].
func Clamp(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Sin returns the sine of the angle in radians.
func Sin(x float32) float32 { return float32(math.Sin(float64(x))) }

// Cos returns the cosine of the angle in radians.
func Cos(x float32) float32 { return float32(math.Cos(float64(x))) }

// Acos returns the arccosine of x in radians.
func Acos(x float32) float32 {
	return float32(math.Acos(float64(Clamp(x, -1, 1))))
}
