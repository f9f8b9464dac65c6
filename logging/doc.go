// Package logging provides a tiny abstraction over slog so downstream code
// can depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. It also offers a richer MeshbotLogger with contextual
// helpers (session, channel, component) and domain specific helpers for tool
// executions, model calls and memory consolidation.
package logging
