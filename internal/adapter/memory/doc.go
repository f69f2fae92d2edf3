// Package memory provides single-instance implementations of the counter store capabilities.
//
// They are used only when no shared store is configured. Limits and duplicate guards then hold
// per process, so running N instances multiplies every effective limit by N.
package memory
