// Package local keeps the shell's on-device state: the bookmark mirror
// (JSON, encoded with sonic) and user preferences (YAML).
//
// Both files are replaced atomically through a temp file and rename, so a
// crash mid-write leaves the previous version readable.
package local
