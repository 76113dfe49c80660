package ar

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/oshokin/pkg-assembler/internal/domain/build"
)

const (
	// Magic is the global archive signature.
	Magic = "!<arch>\n"
	// HeaderSize is the fixed size of a member header.
	HeaderSize = 60
	// MaxNameLength is the width of the name field.
	MaxNameLength = 16
	// MaxMemberSize bounds a single member accepted by Reader.
	MaxMemberSize = 1 << 30

	headerTerminator = "`\n"
	paddingByte      = '\n'
	regularFileMode  = 0o100000

	nameWidth  = 16
	mtimeWidth = 12
	idWidth    = 6
	modeWidth  = 8
	sizeWidth  = 10
)

var (
	// ErrBadMagic is returned when the input does not start with Magic.
	ErrBadMagic = errors.New("ar: bad magic")
	// ErrBadHeader is returned for a malformed member header.
	ErrBadHeader = errors.New("ar: bad member header")
	// ErrMemberTooLarge is returned by Reader for a member above MaxMemberSize.
	ErrMemberTooLarge = errors.New("ar: member too large")
	// ErrFieldOverflow is returned when a numeric field does not fit its width.
	ErrFieldOverflow = errors.New("ar: header field overflow")
)

// Member is one named entry of an archive.
type Member struct {
	Name    string
	ModTime int64
	UID     int
	GID     int
	Mode    os.FileMode
	Data    []byte
}

// ValidateName checks that name fits the fixed-width name field.
func ValidateName(name string) error {
	switch {
	case name == "":
		return errorf(name, "empty name")
	case len(name) > MaxNameLength:
		return errorf(name, "longer than 16 bytes")
	case strings.ContainsAny(name, " /\t\n"):
		return errorf(name, "contains a separator")
	default:
		return nil
	}
}

func errorf(name, reason string) error {
	return fmt.Errorf("ar: member %q: %s: %w", name, reason, build.ErrInvalidMemberName)
}
