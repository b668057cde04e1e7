//go:build !race

package chashmap

const raceEnabled = false
