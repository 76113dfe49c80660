// Package ar reads and writes the common Unix "ar" archive format used as
// the outer container of Debian packages.
//
// The layout is an 8-byte global signature followed by members. Every member
// has a 60-byte text header (name 16, mtime 12, uid 6, gid 6, octal mode 8,
// size 10, terminator 2), its content, and one '\n' pad byte when the content
// length is odd. Names longer than 16 bytes are rejected: there is no
// extended name table here, and truncating a name would produce a valid
// looking archive with the wrong member.
package ar
