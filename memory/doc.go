// Package memory implements durable long-term memory for the workspace: a
// deduplicated facts document (MEMORY.md) and a chronological events log
// (HISTORY.md), plus the consolidation algorithm that compresses aged session
// history into both via an LLM summarization call.
package memory
