// Package engine drives conversations: it drains the inbound queue, resolves
// each message to its session, runs the bounded model/tool iteration loop, and
// publishes the reply. Sessions are processed strictly one message at a time;
// distinct sessions run concurrently across the worker pool.
package engine
