// Package server wires configuration, storage, the metadata enricher and the
// gin router into the bookmark API process.
package server
