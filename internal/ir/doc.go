// Package ir provides the shared data types for tickloop programs and traces.
//
// All other internal packages that exchange jobs or traces import ir; ir
// imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere - seconds and microseconds are int64
//   - All JSON tags use snake_case
//   - Traces are ordered by a per-run seq counter and virtual time, never
//     wall-clock timestamps
package ir
