// Package fetch downloads build inputs from an ordered list of mirrors into
// a local cache directory. Mirrors are tried one after another and the
// first verified download wins. Files are installed into the cache with
// go-update so a half-written file is never visible under its final name.
package fetch
