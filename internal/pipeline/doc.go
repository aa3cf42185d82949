// Package pipeline drives one media run at a time: select, classify,
// compress, inspect, publish.
//
// The Controller owns the DisplayState. Every step transition replaces it
// under a mutex and notifies subscribers with a copy, so renderers never see
// a half-updated state. Starting a new run bumps a generation counter and
// cancels the previous run's context; results that arrive for an older
// generation are dropped.
package pipeline
