package ar

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/oshokin/pkg-assembler/internal/fsutil"
)

// Writer emits an archive to an underlying writer.
type Writer struct {
	w          io.Writer
	offset     int64
	wroteMagic bool
}

// NewWriter creates a Writer. The signature is written with the first member.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Offset returns the number of bytes written so far.
func (w *Writer) Offset() int64 {
	return w.offset
}

// WriteMember validates and appends one member.
func (w *Writer) WriteMember(m Member) error {
	header, err := formatHeader(m)
	if err != nil {
		return err
	}

	if !w.wroteMagic {
		if err = w.write([]byte(Magic)); err != nil {
			return err
		}

		w.wroteMagic = true
	}

	if err = w.write(header); err != nil {
		return err
	}

	if err = w.write(m.Data); err != nil {
		return err
	}

	if len(m.Data)%2 == 1 {
		return w.write([]byte{paddingByte})
	}

	return nil
}

// Close writes the signature of an empty archive if no member was written.
func (w *Writer) Close() error {
	if w.wroteMagic {
		return nil
	}

	w.wroteMagic = true

	return w.write([]byte(Magic))
}

func (w *Writer) write(p []byte) error {
	n, err := w.w.Write(p)
	w.offset += int64(n)

	if err != nil {
		return fmt.Errorf("ar: write: %w", err)
	}

	return nil
}

// WriteArchive validates every member before writing anything, then writes them in order.
func WriteArchive(w io.Writer, members []Member) error {
	for _, m := range members {
		if _, err := formatHeader(m); err != nil {
			return err
		}
	}

	aw := NewWriter(w)
	for _, m := range members {
		if err := aw.WriteMember(m); err != nil {
			return err
		}
	}

	return aw.Close()
}

// Marshal returns the archive bytes for members.
func Marshal(members []Member) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteArchive(&buf, members); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// WriteFile writes the archive to path atomically. On error nothing is created at path.
func WriteFile(path string, members []Member, perm os.FileMode) error {
	data, err := Marshal(members)
	if err != nil {
		return err
	}

	return fsutil.WriteFileAtomic(path, perm, func(w io.Writer) error {
		_, writeErr := w.Write(data)

		return writeErr
	})
}

// formatHeader renders the 60-byte header of m.
func formatHeader(m Member) ([]byte, error) {
	if err := ValidateName(m.Name); err != nil {
		return nil, err
	}

	fields := []struct {
		name  string
		value string
		width int
	}{
		{"name", m.Name, nameWidth},
		{"mtime", strconv.FormatInt(m.ModTime, 10), mtimeWidth},
		{"uid", strconv.Itoa(m.UID), idWidth},
		{"gid", strconv.Itoa(m.GID), idWidth},
		{"mode", strconv.FormatUint(uint64(regularFileMode|m.Mode.Perm()), 8), modeWidth},
		{"size", strconv.Itoa(len(m.Data)), sizeWidth},
	}

	header := make([]byte, 0, HeaderSize)

	for _, f := range fields {
		if len(f.value) > f.width || (f.name != "name" && f.value[0] == '-') {
			return nil, fmt.Errorf("%s %q of %s: %w", f.name, f.value, m.Name, ErrFieldOverflow)
		}

		header = append(header, f.value...)
		for i := len(f.value); i < f.width; i++ {
			header = append(header, ' ')
		}
	}

	header = append(header, headerTerminator...)

	return header, nil
}
