// Package output holds the memory image produced by the emit pass and the
// load formats it is written in.
package output

import (
	"errors"
	"fmt"
	"io"
	"sort"
)

var (
	ErrOverlap      = errors.New("overlapping output")
	ErrAddressRange = errors.New("address out of range")
)

// DefaultLimit is the size of a 16-bit address space.
const DefaultLimit = 0x10000

// HexLimit is the address space reachable through extended linear address
// records.
const HexLimit = 1 << 32

// Image is a sparse address -> byte store with a write cursor.
type Image struct {
	mem       map[int]byte
	cursor    int
	limit     int
	sourceMap map[int]int
}

func New(limit int) *Image {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Image{
		mem:       make(map[int]byte),
		limit:     limit,
		sourceMap: make(map[int]int),
	}
}

func (img *Image) Addr() int { return img.cursor }

func (img *Image) Limit() int { return img.limit }

// SetNextAddress moves the cursor; the next write lands at addr.
func (img *Image) SetNextAddress(addr int) error {
	if addr < 0 || addr > img.limit {
		return fmt.Errorf("%w: 0x%X", ErrAddressRange, addr)
	}
	img.cursor = addr
	return nil
}

func (img *Image) WriteByte(b byte) error {
	if img.cursor < 0 || img.cursor >= img.limit {
		return fmt.Errorf("%w: 0x%X", ErrAddressRange, img.cursor)
	}
	if _, used := img.mem[img.cursor]; used {
		return fmt.Errorf("%w at 0x%04X", ErrOverlap, img.cursor)
	}
	img.mem[img.cursor] = b
	img.cursor++
	return nil
}

func (img *Image) Write(p []byte) (int, error) {
	for i, b := range p {
		if err := img.WriteByte(b); err != nil {
			return i, err
		}
	}
	return len(p), nil
}

// WriteWord stores w little-endian.
func (img *Image) WriteWord(w uint16) error {
	if err := img.WriteByte(byte(w & 0xFF)); err != nil {
		return err
	}
	return img.WriteByte(byte(w >> 8))
}

func (img *Image) ByteAt(addr int) (byte, bool) {
	b, ok := img.mem[addr]
	return b, ok
}

// Len is the number of bytes written.
func (img *Image) Len() int { return len(img.mem) }

// Bounds returns the lowest written address and one past the highest.
func (img *Image) Bounds() (lo, hi int) {
	if len(img.mem) == 0 {
		return 0, 0
	}
	first := true
	for addr := range img.mem {
		if first || addr < lo {
			lo = addr
		}
		if first || addr+1 > hi {
			hi = addr + 1
		}
		first = false
	}
	return lo, hi
}

// Segment is a run of consecutive written bytes.
type Segment struct {
	Addr int
	Data []byte
}

// Segments returns the contiguous runs of the image in address order.
func (img *Image) Segments() []Segment {
	addrs := make([]int, 0, len(img.mem))
	for addr := range img.mem {
		addrs = append(addrs, addr)
	}
	sort.Ints(addrs)

	var segs []Segment
	for _, addr := range addrs {
		n := len(segs)
		if n > 0 && segs[n-1].Addr+len(segs[n-1].Data) == addr {
			segs[n-1].Data = append(segs[n-1].Data, img.mem[addr])
			continue
		}
		segs = append(segs, Segment{Addr: addr, Data: []byte{img.mem[addr]}})
	}
	return segs
}

// Bytes flattens the image starting at its lowest address; gaps are zero.
func (img *Image) Bytes() (base int, data []byte) {
	lo, hi := img.Bounds()
	data = make([]byte, hi-lo)
	for addr, b := range img.mem {
		data[addr-lo] = b
	}
	return lo, data
}

// MarkLine records that the bytes written next come from source line.
func (img *Image) MarkLine(line int) {
	if _, ok := img.sourceMap[img.cursor]; !ok {
		img.sourceMap[img.cursor] = line
	}
}

// SourceMap maps the first address of each emitted statement to its line.
func (img *Image) SourceMap() map[int]int {
	out := make(map[int]int, len(img.sourceMap))
	for addr, line := range img.sourceMap {
		if _, ok := img.mem[addr]; ok {
			out[addr] = line
		}
	}
	return out
}

// WriteBinary writes the flattened image.
func (img *Image) WriteBinary(w io.Writer) error {
	_, data := img.Bytes()
	_, err := w.Write(data)
	return err
}
