//go:build race

package chashmap

// raceEnabled scales down the heavier tests, which run an order of
// magnitude slower under the race detector.
const raceEnabled = true
