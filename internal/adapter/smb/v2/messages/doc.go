// Package messages decodes SMB2 request bodies and encodes response bodies
// [MS-SMB2] 2.2.
//
// Every request type implements Request, so a decoded body can be routed
// with a type switch. Buffer offsets on the wire are relative to the start
// of the SMB2 header; decoders receive the body only and subtract
// header.HeaderSize themselves.
package messages
