// Package bundle builds self-executing Linux bundles (AppImage layout).
//
// A bundle is a runtime stub immediately followed by a squashfs image of
// the staged application directory. The stub finds the image by its own
// size, so assembly is a byte-exact concatenation with no framing.
//
// Two strategies exist. ToolStrategy hands the directory to appimagetool.
// ManualStrategy downloads the stub, runs mksquashfs and concatenates the
// two itself. Assembler tries them in order.
package bundle
