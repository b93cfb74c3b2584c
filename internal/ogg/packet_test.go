package ogg

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/simonhull/opusmeta/internal/oggtest"
	"github.com/simonhull/opusmeta/internal/types"
)

// multiPagePacket returns a stream holding a head page, a packet spread
// over several pages and one audio page.
func multiPagePacket(t *testing.T, size int) ([]byte, []byte, *oggtest.Stream) {
	t.Helper()
	packet := make([]byte, size)
	for i := range packet {
		packet[i] = byte(i % 251)
	}

	s := oggtest.NewStream(42)
	s.Page(0x02, 0, []byte{4}, []byte("head"))
	s.Packet(0x00, 0, packet, 510)
	s.Page(0x04, 960, []byte{5}, []byte("audio"))
	return s.Bytes(), packet, s
}

func TestPacketReader_ReadsAcrossPages(t *testing.T) {
	data, packet, s := multiPagePacket(t, 1300)
	r := newTestReader(t, data)
	if _, err := r.Next(); err != nil {
		t.Fatalf("Next() error = %v", err)
	}

	pr := NewPacketReader(r, 42)
	got, err := io.ReadAll(pr)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if !bytes.Equal(got, packet) {
		t.Fatalf("packet bytes differ (got %d bytes, want %d)", len(got), len(packet))
	}
	if pr.Pages() != 3 {
		t.Errorf("Pages() = %d, want 3", pr.Pages())
	}
	if !pr.Done() {
		t.Error("Done() = false after reading the whole packet")
	}

	// The next page is untouched and belongs to the audio.
	page, err := r.Next()
	if err != nil {
		t.Fatalf("Next() after packet error = %v", err)
	}
	if page.Offset != s.Offsets[4] || string(page.Data) != "audio" {
		t.Errorf("page after packet = offset %d data %q", page.Offset, page.Data)
	}
}

func TestPacketReader_ExactMultipleOf255(t *testing.T) {
	data, packet, _ := multiPagePacket(t, 1020)
	r := newTestReader(t, data)
	r.Next()

	pr := NewPacketReader(r, 42)
	got, err := pr.ReadFull(1020, "packet")
	if err != nil {
		t.Fatalf("ReadFull() error = %v", err)
	}
	if !bytes.Equal(got, packet) {
		t.Error("packet bytes differ")
	}
	if rest, err := pr.ReadRest(); err != nil || len(rest) != 0 {
		t.Errorf("ReadRest() = %d bytes, %v; want empty", len(rest), err)
	}
}

func TestPacketReader_ReadFullPastEnd(t *testing.T) {
	data, _, _ := multiPagePacket(t, 600)
	r := newTestReader(t, data)
	r.Next()

	pr := NewPacketReader(r, 42)
	if err := pr.Skip(590, "prefix"); err != nil {
		t.Fatalf("Skip() error = %v", err)
	}

	_, err := pr.ReadFull(20, "comment length")
	var oob *types.OutOfBoundsError
	if !errors.As(err, &oob) {
		t.Fatalf("ReadFull() error = %v, want *OutOfBoundsError", err)
	}
	if oob.What != "comment length" || oob.Offset != 590 || oob.Length != 20 {
		t.Errorf("error = %+v", oob)
	}
}

func TestPacketReader_Position(t *testing.T) {
	data, _, s := multiPagePacket(t, 1300)
	r := newTestReader(t, data)
	r.Next()

	pr := NewPacketReader(r, 42)
	page, off, err := pr.Position()
	if err != nil {
		t.Fatalf("Position() error = %v", err)
	}
	if page != s.Offsets[1] || off != 0 {
		t.Errorf("Position() = (%d, %d), want (%d, 0)", page, off, s.Offsets[1])
	}

	// Consuming exactly one page moves the position to the next page.
	if err := pr.Skip(510, "first page"); err != nil {
		t.Fatalf("Skip() error = %v", err)
	}
	page, off, err = pr.Position()
	if err != nil {
		t.Fatalf("Position() error = %v", err)
	}
	if page != s.Offsets[2] || off != 0 {
		t.Errorf("Position() = (%d, %d), want (%d, 0)", page, off, s.Offsets[2])
	}

	if err := pr.Skip(100, "more"); err != nil {
		t.Fatalf("Skip() error = %v", err)
	}
	page, off, _ = pr.Position()
	if page != s.Offsets[2] || off != 100 {
		t.Errorf("Position() = (%d, %d), want (%d, 100)", page, off, s.Offsets[2])
	}
}

func TestResumePacketReader(t *testing.T) {
	data, packet, s := multiPagePacket(t, 1300)
	r := newTestReader(t, data)

	pr, err := ResumePacketReader(r, 42, s.Offsets[2], 100)
	if err != nil {
		t.Fatalf("ResumePacketReader() error = %v", err)
	}
	got, err := io.ReadAll(pr)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if !bytes.Equal(got, packet[610:]) {
		t.Errorf("resumed bytes differ: got %d bytes, want %d", len(got), len(packet)-610)
	}

	if _, err := ResumePacketReader(r, 42, s.Offsets[2], 9999); err == nil {
		t.Error("resume offset past page data should fail")
	}
}

func TestPacketReader_ContinuationErrors(t *testing.T) {
	t.Run("start page marked continued", func(t *testing.T) {
		s := oggtest.NewStream(1)
		s.Page(0x01, 0, []byte{3}, []byte("abc"))
		pr := NewPacketReader(newTestReader(t, s.Bytes()), 1)
		if _, err := io.ReadAll(pr); !errors.Is(err, types.ErrContinuation) {
			t.Errorf("error = %v, want ErrContinuation", err)
		}
	})

	t.Run("continuation not marked", func(t *testing.T) {
		s := oggtest.NewStream(1)
		s.Page(0x00, 0, []byte{255}, make([]byte, 255))
		s.Page(0x00, 0, []byte{3}, []byte("abc"))
		pr := NewPacketReader(newTestReader(t, s.Bytes()), 1)
		if _, err := io.ReadAll(pr); !errors.Is(err, types.ErrContinuation) {
			t.Errorf("error = %v, want ErrContinuation", err)
		}
	})

	t.Run("serial changes mid packet", func(t *testing.T) {
		s := oggtest.NewStream(1)
		s.Page(0x00, 0, []byte{255}, make([]byte, 255))
		data := append(bytes.Clone(s.Bytes()), oggtest.Page(0x01, 0, 2, 1, []byte{3}, []byte("abc"))...)
		pr := NewPacketReader(newTestReader(t, data), 1)
		if _, err := io.ReadAll(pr); !errors.Is(err, types.ErrSerialMismatch) {
			t.Errorf("error = %v, want ErrSerialMismatch", err)
		}
	})

	t.Run("file ends mid packet", func(t *testing.T) {
		s := oggtest.NewStream(1)
		s.Page(0x00, 0, []byte{255}, make([]byte, 255))
		pr := NewPacketReader(newTestReader(t, s.Bytes()), 1)
		_, err := io.ReadAll(pr)
		if !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Errorf("error = %v, want io.ErrUnexpectedEOF", err)
		}
	})
}
