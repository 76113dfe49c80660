package ar

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Reader iterates over the members of an archive.
type Reader struct {
	r *bufio.Reader
}

// NewReader checks the signature and returns a Reader positioned at the first member.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)

	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadMagic, err)
	}

	if string(magic) != Magic {
		return nil, ErrBadMagic
	}

	return &Reader{r: br}, nil
}

// Next returns the next member or io.EOF after the last one.
func (r *Reader) Next() (*Member, error) {
	header := make([]byte, HeaderSize)

	n, err := io.ReadFull(r.r, header)
	if errors.Is(err, io.EOF) && n == 0 {
		return nil, io.EOF
	}

	if err != nil {
		return nil, fmt.Errorf("%w: short header: %w", ErrBadHeader, err)
	}

	m, size, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	if size > MaxMemberSize {
		return nil, fmt.Errorf("%w: %s: %d bytes", ErrMemberTooLarge, m.Name, size)
	}

	// The buffer grows with the bytes actually present, not with the declared size.
	var data bytes.Buffer

	copied, err := io.Copy(&data, io.LimitReader(r.r, int64(size)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read content: %w", ErrBadHeader, m.Name, err)
	}

	if copied != int64(size) {
		return nil, fmt.Errorf("%w: %s: short content: %d of %d bytes: %w",
			ErrBadHeader, m.Name, copied, size, io.ErrUnexpectedEOF)
	}

	m.Data = data.Bytes()

	if size%2 == 1 {
		pad, padErr := r.r.ReadByte()

		switch {
		case errors.Is(padErr, io.EOF):
			// Tolerated at the very end of the archive.
		case padErr != nil:
			return nil, fmt.Errorf("ar: read padding: %w", padErr)
		case pad != paddingByte:
			return nil, fmt.Errorf("%w: %s: bad padding byte %#x", ErrBadHeader, m.Name, pad)
		}
	}

	return m, nil
}

// ReadAll parses every member of an archive.
func ReadAll(r io.Reader) ([]Member, error) {
	reader, err := NewReader(r)
	if err != nil {
		return nil, err
	}

	var members []Member

	for {
		m, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return members, nil
		}

		if err != nil {
			return nil, err
		}

		members = append(members, *m)
	}
}

func parseHeader(header []byte) (*Member, int, error) {
	if string(header[58:60]) != headerTerminator {
		return nil, 0, fmt.Errorf("%w: bad terminator", ErrBadHeader)
	}

	field := func(from, to int) string {
		return strings.TrimRight(string(header[from:to]), " ")
	}

	name := strings.TrimSuffix(field(0, 16), "/")

	mtime, err := strconv.ParseInt(field(16, 28), 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s: mtime: %w", ErrBadHeader, name, err)
	}

	uid, err := strconv.Atoi(field(28, 34))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s: uid: %w", ErrBadHeader, name, err)
	}

	gid, err := strconv.Atoi(field(34, 40))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s: gid: %w", ErrBadHeader, name, err)
	}

	mode, err := strconv.ParseUint(field(40, 48), 8, 32)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s: mode: %w", ErrBadHeader, name, err)
	}

	size, err := strconv.Atoi(field(48, 58))
	if err != nil || size < 0 {
		return nil, 0, fmt.Errorf("%w: %s: size %q", ErrBadHeader, name, field(48, 58))
	}

	return &Member{
		Name:    name,
		ModTime: mtime,
		UID:     uid,
		GID:     gid,
		Mode:    os.FileMode(mode).Perm(),
	}, size, nil
}
