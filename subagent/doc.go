// Package subagent executes delegated background tasks in isolation: a fresh
// conversation context, a restricted tool registry that cannot spawn further
// subagents or message arbitrary chats, and a separate iteration budget. The
// result is delivered to the originating conversation through the outbound
// queue.
package subagent
