// Package sanitizer normalizes free-text booking fields before validation.
//
// Every function is idempotent. Invalid input degrades to a shorter or empty string rather
// than an error, leaving the rejection to the validator.
package sanitizer
