// Package state owns the three persisted sets the publishing job relies on:
// the posted-identifier set, the existing-title cache, and the progress
// cursor. Pure storage, no policy.
package state
