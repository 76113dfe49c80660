// Package deb writes Debian binary packages without external tools.
//
// A package is an ar container with three members in fixed order:
// debian-binary, control.tar.gz and data.tar.gz. Timestamps and ownership
// are pinned so that the same manifest always yields the same bytes.
package deb
