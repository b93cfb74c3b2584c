package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/simonhull/opusmeta/internal/ogg"
	"github.com/simonhull/opusmeta/internal/opus"
)

// Prints every page header of an Ogg file, for checking what the writer produced.
func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: ogg-dump <file.opus>")
		os.Exit(1)
	}

	f, err := os.Open(os.Args[1])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if err := dumpPages(f, stat.Size()); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func dumpPages(r io.ReaderAt, end int64) error {
	fmt.Printf("%-10s %-5s %-12s %-8s %-6s %-4s %-6s %s\n",
		"offset", "flags", "granule", "serial", "seq", "segs", "size", "crc")

	raw := make([]byte, ogg.MaxPageSize)
	for offset := int64(0); offset < end; {
		n, err := r.ReadAt(raw, offset)
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}

		h, err := ogg.ParseHeader(raw[:n])
		if err != nil {
			return fmt.Errorf("page at offset %d: %w", offset, err)
		}
		size := h.Len()
		if size > n {
			fmt.Printf("%-10d truncated: %d of %d bytes\n", offset, n, size)
			return nil
		}

		page := raw[:size]
		fmt.Printf("%-10d %-5s %-12d %08x %-6d %-4d %-6d %s\n",
			offset, flags(h), h.Granule, h.Serial, h.Sequence, len(h.Segments), size, crcStatus(page, h.CRC))

		if h.IsFirst() {
			describeHead(page[h.HeaderLen():])
		}
		offset += int64(size)
	}
	return nil
}

func flags(h *ogg.Header) string {
	var b strings.Builder
	for _, f := range []struct {
		set  bool
		char byte
	}{{h.IsContinued(), 'c'}, {h.IsFirst(), 'b'}, {h.IsLast(), 'e'}} {
		if f.set {
			b.WriteByte(f.char)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

// crcStatus recomputes the checksum with the stored field zeroed.
func crcStatus(page []byte, stored uint32) string {
	tmp := make([]byte, len(page))
	copy(tmp, page)
	binary.LittleEndian.PutUint32(tmp[22:], 0)
	if got := ogg.CRC(tmp); got != stored {
		return fmt.Sprintf("BAD (stored %08x, computed %08x)", stored, got)
	}
	return "ok"
}

func describeHead(data []byte) {
	h, err := opus.ParseHead(data, "")
	if err != nil {
		fmt.Printf("  not an Opus stream: %v\n", err)
		return
	}
	fmt.Printf("  OpusHead: %d channels, pre-skip %d, input rate %d Hz, gain %.2f dB, family %d\n",
		h.Channels, h.PreSkip, h.InputSampleRate, h.GainDB(), h.MappingFamily)
}
