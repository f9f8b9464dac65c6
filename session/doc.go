// Package session implements per-conversation state: an append-only,
// role-tagged message log keyed by the composite "{channel}:{chat_id}"
// identifier. Stores support load, append and the consolidation checkpoint
// that replaces an aged history prefix with a single marker message.
package session
