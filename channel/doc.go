// Package channel connects chat platforms to the message bus. An Adapter
// owns one platform connection: it forwards received messages to the inbound
// queue and delivers outbound messages addressed to its channel name. The
// Manager fans outbound traffic out to the right adapter.
package channel
