// Package app is the application layer between the HTTP adapter and the integrity engine.
//
// Service parses and gates requests (CAPTCHA verdict, reference data) before handing them to the
// engine. Sweeper runs the periodic cleanup and rescore passes on the instance holding leadership.
package app
