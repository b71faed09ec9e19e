// Package fileinfo encodes and decodes the [MS-FSCC] information structures
// carried in QUERY_INFO, SET_INFO, QUERY_DIRECTORY and CHANGE_NOTIFY payloads.
//
// Every structure has a fixed part and, for name-carrying classes, a UTF-16LE
// trailer whose byte length is stored in the fixed part. Length reports the
// exact encoded size, so callers can size buffers and check output limits
// before encoding.
package fileinfo
