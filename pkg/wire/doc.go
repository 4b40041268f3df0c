// Package wire defines the value types that cross the Property Exchange
// boundary: device identifiers, destinations, the parsed PE header, chunk
// tuples and the reply-kind variant the message parser returns.
//
// The byte-exact SysEx framing, the Mcoded7 codec and JSON resource schemas
// are external collaborators; this package only defines the shapes the core
// consumes and produces, plus the MessageCodec interface those collaborators
// implement.
package wire
