// Package registry holds the server's session, tree and open-handle tables.
//
// Sessions live in a per-connection SessionTable. Each Session owns its tree
// connections and its open files. Open files are also indexed server-wide in
// an OpenTable keyed by persistent file ID, which is where persistent IDs are
// allocated.
//
// Lock order is OpenTable before Session. Neither table calls into the store;
// callers close store handles for the OpenFiles the tables hand back.
package registry
