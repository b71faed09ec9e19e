// Package store defines the filesystem capability the SMB2 server drives.
//
// A Store resolves share-relative paths, owns open handles and performs
// file I/O and namespace changes. Stores that can watch directories also
// implement Notifier; the server answers CHANGE_NOTIFY with
// STATUS_NOT_SUPPORTED for stores that do not.
//
// Paths passed to a Store use either separator and are relative to the
// share root. Implementations normalise them with NormalizePath.
package store
