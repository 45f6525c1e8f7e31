// Package unleash implements flagsync.FlagClient against the Unleash
// frontend API.
package unleash
