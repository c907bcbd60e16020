// Package service is the switch's control channel: it decodes OpenFlow
// messages, journals accepted changes, applies them to the meter table
// and queues change events for the broadcaster.
//
// It is decoupled from transports; the gRPC admin server and tests both
// call Handle with raw OpenFlow bytes.
package service
