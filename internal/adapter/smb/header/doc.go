// Package header parses and encodes the 64-byte SMB2 packet header.
//
//	Offset  Size  Field
//	0       4     ProtocolID     0xFE 'S' 'M' 'B'
//	4       2     StructureSize  always 64
//	6       2     CreditCharge
//	8       4     Status         NT_STATUS, responses only
//	12      2     Command
//	14      2     Credits        requested / granted
//	16      4     Flags
//	20      4     NextCommand    offset of the next compounded header
//	24      8     MessageID
//	32      4     Reserved       ProcessID when sync
//	36      4     TreeID
//	32      8     AsyncID        replaces Reserved+TreeID when FlagAsync is set
//	40      8     SessionID
//	48      16    Signature
//
// All fields are little-endian. [MS-SMB2] 2.2.1
package header
