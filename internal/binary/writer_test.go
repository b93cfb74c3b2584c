package binary

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestWrite_ByteOrder(t *testing.T) {
	tests := []struct {
		name  string
		write func(*SafeWriter) error
		want  []byte
	}{
		{"uint8", func(sw *SafeWriter) error { return Write[uint8](sw, 0x7F) }, []byte{0x7F}},
		{"uint16 BE", func(sw *SafeWriter) error { return Write[uint16](sw, 0xABCD) }, []byte{0xAB, 0xCD}},
		{"uint32 BE", func(sw *SafeWriter) error { return Write[uint32](sw, 0x12345678) }, []byte{0x12, 0x34, 0x56, 0x78}},
		{"uint64 BE", func(sw *SafeWriter) error { return Write[uint64](sw, 0x0102030405060708) }, []byte{1, 2, 3, 4, 5, 6, 7, 8}},
		{"uint16 LE", func(sw *SafeWriter) error { return WriteLE[uint16](sw, 0x0138) }, []byte{0x38, 0x01}},
		{"uint32 LE", func(sw *SafeWriter) error { return WriteLE[uint32](sw, 48000) }, []byte{0x80, 0xBB, 0x00, 0x00}},
		{"uint64 LE", func(sw *SafeWriter) error { return WriteLE[uint64](sw, 0x0102030405060708) }, []byte{8, 7, 6, 5, 4, 3, 2, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			sw := NewSafeWriter(&buf)
			if err := tt.write(sw); err != nil {
				t.Fatalf("write error = %v", err)
			}
			if !bytes.Equal(buf.Bytes(), tt.want) {
				t.Errorf("wrote %x, want %x", buf.Bytes(), tt.want)
			}
			if sw.Offset() != int64(len(tt.want)) {
				t.Errorf("Offset() = %d, want %d", sw.Offset(), len(tt.want))
			}
		})
	}
}

// An OpusTags prefix: magic, counted vendor, comment count.
func TestSafeWriter_TagsPrefix(t *testing.T) {
	var buf bytes.Buffer
	sw := NewSafeWriter(&buf)

	if err := sw.WriteString("OpusTags"); err != nil {
		t.Fatal(err)
	}
	if err := WriteCounted(sw, binary.LittleEndian, "vendor", "libopus"); err != nil {
		t.Fatal(err)
	}
	if err := WriteLE[uint32](sw, 2); err != nil {
		t.Fatal(err)
	}

	want := append([]byte("OpusTags\x07\x00\x00\x00libopus"), 2, 0, 0, 0)
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("wrote %q, want %q", buf.Bytes(), want)
	}
	if sw.Offset() != int64(len(want)) {
		t.Errorf("Offset() = %d, want %d", sw.Offset(), len(want))
	}
}

func TestWriteCounted_BigEndian(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCounted(NewSafeWriter(&buf), binary.BigEndian, "MIME type", "image/png"); err != nil {
		t.Fatal(err)
	}
	if want := append([]byte{0, 0, 0, 9}, "image/png"...); !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("wrote %q, want %q", buf.Bytes(), want)
	}
}

func TestWriteCounted_Empty(t *testing.T) {
	var buf bytes.Buffer
	sw := NewSafeWriter(&buf)
	if err := WriteCounted(sw, binary.LittleEndian, "vendor", ""); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf.Bytes(), []byte{0, 0, 0, 0}) || sw.Offset() != 4 {
		t.Errorf("wrote %v at offset %d", buf.Bytes(), sw.Offset())
	}
}

// failWriter accepts limit bytes and then fails.
type failWriter struct {
	limit int
}

var errDiskFull = errors.New("disk full")

func (w *failWriter) Write(p []byte) (int, error) {
	if len(p) <= w.limit {
		w.limit -= len(p)
		return len(p), nil
	}
	n := w.limit
	w.limit = 0
	return n, errDiskFull
}

func TestSafeWriter_Errors(t *testing.T) {
	sw := NewSafeWriter(&failWriter{limit: 6})

	if err := Write[uint32](sw, 1); err != nil {
		t.Fatalf("first write error = %v", err)
	}
	if err := WriteLE[uint32](sw, 2); !errors.Is(err, errDiskFull) {
		t.Fatalf("second write error = %v, want errDiskFull", err)
	}
	// Short writes still advance the offset by what was accepted.
	if sw.Offset() != 6 {
		t.Errorf("Offset() = %d, want 6", sw.Offset())
	}
}
