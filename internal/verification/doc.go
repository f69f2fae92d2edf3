// Package verification implements the verification integrity engine.
//
// Admission runs through a sliding-window rate limiter and a duplicate detector backed by the
// shared counter store. Subject state is a pure function of the non-expired submission set and the
// current time: consensus decides the status, the confidence scorer decides the score. Cleanup
// hard-deletes expired rows and rescoring advances recency decay for idle subjects.
package verification
