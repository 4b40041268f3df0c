// Package mcoded7 declares the Mcoded7 codec interface: the 8-bit-to-7-bit
// byte packing SysEx requires because its bytes must have the high bit
// clear. The concrete packing/unpacking is an external collaborator per the
// engine's scope; this package only names the contract pe.Manager consumes.
package mcoded7

// Codec encodes and decodes Mcoded7 payloads.
type Codec interface {
	Encode(payload []byte) ([]byte, error)
	Decode(packed []byte) ([]byte, error)
}
