// Package subscription implements the Subscription Manager. It wraps a PE
// Manager and a device-discovery service to track subscription *intents*
// that outlive the underlying device-assigned subscription: a device loss
// suspends an intent rather than destroying it, and a device re-appearance
// drives an automatic re-subscribe. Grounded on the state-machine idiom of
// the teacher's pkg/connection.Manager reconnect loop, generalized from one
// connection to many independent per-intent state machines serialized
// under a single mutex, in the style of the teacher's own subscription
// package.
package subscription
