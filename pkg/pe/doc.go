// Package pe is the PE Manager: the Initiator core that validates, sends
// and tracks GET/SET/Subscribe/Unsubscribe requests, reassembles replies
// and Notify messages, and resumes exactly one waiter per request with a
// terminal outcome. It owns a Transaction Manager, a Notify Assembly
// Manager, a Destination Cache and (through Config) a Send Strategy,
// mirroring the ownership the teacher's pkg/interaction.Client has over its
// pending-request table, generalized to PE's richer reply-kind dispatch.
package pe
