// Package events carries launcher lifecycle events to optional observers.
//
// The launcher publishes one Event per lifecycle step (port chosen, backend
// started, health checked, backend stopped and so on). Observers such as the
// launch journal, the MQTT publisher, the metrics collector and the control
// API's websocket hub subscribe to a Bus. Delivery is synchronous and in
// subscription order; a panicking observer is logged and skipped so it
// cannot break the launch sequence.
package events
