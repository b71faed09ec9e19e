// Package types holds SMB2 protocol constants: command codes, header flags,
// dialects, NT status codes, file attributes, access masks, create options,
// information classes and FILETIME conversion.
//
// Values follow [MS-SMB2], [MS-FSCC] and [MS-ERREF]. Commands, flags,
// dialects and statuses have their own Go types so they cannot be mixed up
// and render by name in logs.
package types
