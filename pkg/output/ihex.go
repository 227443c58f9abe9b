package output

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/marcinbor85/gohex"
)

// RecordSize is the number of data bytes per Intel HEX data record.
const RecordSize = 16

var ErrIntelHex = errors.New("invalid intel hex")

// WriteIntelHex writes the image as Intel HEX. Each segment starts a new
// data record at its load address and an extended linear address record
// precedes every 64 KiB page that holds data.
func (img *Image) WriteIntelHex(w io.Writer) error {
	mem := gohex.NewMemory()
	for _, seg := range img.Segments() {
		if err := mem.AddBinary(uint32(seg.Addr), seg.Data); err != nil {
			return fmt.Errorf("segment at 0x%04X: %w", seg.Addr, err)
		}
	}
	return mem.DumpIntelHex(w, RecordSize)
}

// ReadIntelHex loads an Intel HEX stream into a fresh image.
func ReadIntelHex(r io.Reader, limit int) (*Image, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(bytes.NewReader(bytes.ReplaceAll(src, []byte("\r"), nil))); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIntelHex, err)
	}

	img := New(limit)
	for _, seg := range mem.GetDataSegments() {
		if err := img.SetNextAddress(int(seg.Address)); err != nil {
			return nil, err
		}
		if _, err := img.Write(seg.Data); err != nil {
			return nil, err
		}
	}
	return img, nil
}
