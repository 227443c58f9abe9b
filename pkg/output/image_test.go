package output

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

func TestImageSequentialWrites(t *testing.T) {
	img := New(0)
	be.Equal(t, img.Limit(), DefaultLimit)

	_, err := img.Write([]byte{0x3E, 0x05})
	be.Err(t, err, nil)
	be.Err(t, img.WriteWord(0x1234), nil)

	be.Equal(t, img.Addr(), 4)
	be.Equal(t, img.Len(), 4)
	b, ok := img.ByteAt(2)
	be.True(t, ok)
	be.Equal(t, b, byte(0x34))
	b, _ = img.ByteAt(3)
	be.Equal(t, b, byte(0x12))
}

func TestImageSetNextAddress(t *testing.T) {
	img := New(0)
	be.Err(t, img.WriteByte(0xAA), nil)
	be.Err(t, img.SetNextAddress(0x10), nil)
	be.Err(t, img.WriteByte(0xBB), nil)

	lo, hi := img.Bounds()
	be.Equal(t, lo, 0)
	be.Equal(t, hi, 0x11)

	segs := img.Segments()
	be.Equal(t, len(segs), 2)
	be.Equal(t, segs[0], Segment{Addr: 0, Data: []byte{0xAA}})
	be.Equal(t, segs[1], Segment{Addr: 0x10, Data: []byte{0xBB}})

	base, data := img.Bytes()
	be.Equal(t, base, 0)
	be.Equal(t, len(data), 0x11)
	be.Equal(t, data[0x10], byte(0xBB))
	be.Equal(t, data[5], byte(0))
}

func TestImageRejectsOverlap(t *testing.T) {
	img := New(0)
	be.Err(t, img.WriteByte(1), nil)
	be.Err(t, img.SetNextAddress(0), nil)
	be.True(t, errors.Is(img.WriteByte(2), ErrOverlap))
}

func TestImageAddressRange(t *testing.T) {
	img := New(0x100)
	be.True(t, errors.Is(img.SetNextAddress(-1), ErrAddressRange))
	be.True(t, errors.Is(img.SetNextAddress(0x101), ErrAddressRange))

	be.Err(t, img.SetNextAddress(0xFF), nil)
	be.Err(t, img.WriteByte(1), nil)
	be.True(t, errors.Is(img.WriteByte(2), ErrAddressRange))
}

func TestImageSourceMap(t *testing.T) {
	img := New(0)
	img.MarkLine(3)
	_, _ = img.Write([]byte{1, 2})
	img.MarkLine(4)
	img.MarkLine(5) // nothing emitted yet at this address; first mark wins
	_, _ = img.Write([]byte{3})
	img.MarkLine(9) // never written

	be.Equal(t, img.SourceMap(), map[int]int{0: 3, 2: 4})
}

func TestWriteBinary(t *testing.T) {
	img := New(0)
	_ = img.SetNextAddress(0x100)
	_, _ = img.Write([]byte{1, 2})
	_ = img.SetNextAddress(0x104)
	_ = img.WriteByte(3)

	var buf bytes.Buffer
	be.Err(t, img.WriteBinary(&buf), nil)
	be.Equal(t, buf.Bytes(), []byte{1, 2, 0, 0, 3})
}

func dumpHex(t *testing.T, img *Image) []string {
	t.Helper()
	var buf bytes.Buffer
	be.Err(t, img.WriteIntelHex(&buf), nil)
	return strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
}

func TestWriteIntelHex(t *testing.T) {
	img := New(0)
	_, _ = img.Write([]byte{0x3E, 0x05, 0xC6, 0x02})
	_ = img.SetNextAddress(0x100)
	_ = img.WriteByte(0x76)

	be.Equal(t, dumpHex(t, img), []string{
		":020000040000FA",
		":040000003E05C602F1",
		":010100007688",
		":00000001FF",
	})
}

func TestIntelHexSplitsLongRuns(t *testing.T) {
	img := New(0)
	_, _ = img.Write(make([]byte, 20))
	be.Equal(t, dumpHex(t, img), []string{
		":020000040000FA",
		":1000000000000000000000000000000000000000F0",
		":0400100000000000EC",
		":00000001FF",
	})
}

func TestIntelHexExtendedAddress(t *testing.T) {
	img := New(0x20000)
	_ = img.SetNextAddress(0xFFFE)
	_, err := img.Write([]byte{1, 2, 3, 4})
	be.Err(t, err, nil)

	be.Equal(t, dumpHex(t, img), []string{
		":020000040000FA",
		":02FFFE000102FE",
		":020000040001F9",
		":020000000304F7",
		":00000001FF",
	})
}

func TestWriteIntelHexEmpty(t *testing.T) {
	be.Equal(t, dumpHex(t, New(0)), []string{":00000001FF"})
}

func TestReadIntelHexRoundTrip(t *testing.T) {
	img := New(0x20000)
	_, _ = img.Write([]byte{0xDE, 0xAD})
	_ = img.SetNextAddress(0x1FFF0)
	_, _ = img.Write([]byte{0xBE, 0xEF})

	var buf bytes.Buffer
	be.Err(t, img.WriteIntelHex(&buf), nil)

	back, err := ReadIntelHex(&buf, 0x20000)
	be.Err(t, err, nil)
	be.Equal(t, back.Segments(), img.Segments())
}

func TestReadIntelHexCRLF(t *testing.T) {
	img, err := ReadIntelHex(strings.NewReader(":04000000486921002A\r\n:00000001FF\r\n"), 0)
	be.Err(t, err, nil)
	_, data := img.Bytes()
	be.Equal(t, data, []byte("Hi!\x00"))
}

func TestReadIntelHexErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no colon", "0300300002337A1E\n:00000001FF\n"},
		{"bad checksum", ":0300300002337A1F\n:00000001FF\n"},
		{"short", ":03003000\n"},
		{"no eof", ":0300300002337A1E\n"},
		{"bad digits", ":zz\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadIntelHex(strings.NewReader(tc.input), 0)
			be.True(t, err != nil)
		})
	}

	_, err := ReadIntelHex(strings.NewReader(":0300300002337A1F\n:00000001FF\n"), 0)
	be.True(t, errors.Is(err, ErrIntelHex))

	// data beyond the image limit
	_, err = ReadIntelHex(strings.NewReader(":020000040001F9\n:020000000304F7\n:00000001FF\n"), 0)
	be.True(t, errors.Is(err, ErrAddressRange))
}
