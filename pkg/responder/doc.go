// Package responder implements the PE Responder: the device side of a PE
// exchange. It holds a resource registry, dispatches inbound Inquiries to
// status-coded Replies, and fans Notifies out to subscribers. Grounded on
// the teacher's pkg/interaction.Server dispatch switch and
// pkg/service.NotificationDispatcher's subscription index.
package responder
