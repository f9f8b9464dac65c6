// Package prompt assembles the per-request model context: the base system
// prompt, a snapshot of long-term memory, the active skill documents, and the
// trailing window of session history.
package prompt
