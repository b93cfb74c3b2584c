package opus

import (
	"bytes"
	"errors"
	"testing"

	"github.com/simonhull/opusmeta/internal/ogg"
	"github.com/simonhull/opusmeta/internal/oggtest"
	"github.com/simonhull/opusmeta/internal/types"
)

func TestParseHead(t *testing.T) {
	data := oggtest.OpusHead(2, 312, 44100, -256, 0, nil)

	h, err := ParseHead(data, "test.opus")
	if err != nil {
		t.Fatalf("ParseHead() error = %v", err)
	}
	if h.Version != 1 || h.Channels != 2 || h.PreSkip != 312 || h.InputSampleRate != 44100 {
		t.Errorf("ParseHead() = %+v", h)
	}
	if h.OutputGain != -256 || h.GainDB() != -1 {
		t.Errorf("OutputGain = %d (%v dB), want -256 (-1 dB)", h.OutputGain, h.GainDB())
	}
	if h.Mapping != nil {
		t.Errorf("family 0 mapping = %v, want nil", h.Mapping)
	}
}

func TestParseHead_MappingFamily(t *testing.T) {
	data := oggtest.OpusHead(3, 0, 48000, 0, 1, []byte{2, 1, 0, 1, 2})

	h, err := ParseHead(data, "test.opus")
	if err != nil {
		t.Fatalf("ParseHead() error = %v", err)
	}
	if h.StreamCount != 2 || h.CoupledCount != 1 || !bytes.Equal(h.Mapping, []byte{0, 1, 2}) {
		t.Errorf("mapping fields = %d %d %v", h.StreamCount, h.CoupledCount, h.Mapping)
	}

	enc, err := h.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !bytes.Equal(enc, data) {
		t.Errorf("Encode() = %x, want %x", enc, data)
	}
}

func TestParseHead_Errors(t *testing.T) {
	valid := oggtest.OpusHead(2, 0, 48000, 0, 0, nil)

	badMagic := bytes.Clone(valid)
	copy(badMagic, "OpusTag")
	badVersion := bytes.Clone(valid)
	badVersion[8] = 0x10
	noChannels := bytes.Clone(valid)
	noChannels[9] = 0

	tests := []struct {
		name         string
		data         []byte
		wantExpected int64
		check        func(error) bool
	}{
		{"short", valid[:10], 19, isInvalidData},
		{"trailing byte", append(bytes.Clone(valid), 0), 19, isInvalidData},
		{"family 1 too short", oggtest.OpusHead(2, 0, 48000, 0, 1, []byte{1, 1, 0}), 23, isInvalidData},
		{"bad magic", badMagic, 0, func(err error) bool {
			var unsupported *types.UnsupportedFormatError
			return errors.As(err, &unsupported)
		}},
		{"major version 1", badVersion, 0, isInvalidData},
		{"zero channels", noChannels, 0, isInvalidData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHead(tt.data, "test.opus")
			if err == nil || !tt.check(err) {
				t.Fatalf("ParseHead() error = %v (%T)", err, err)
			}
			var inv *types.InvalidDataError
			if tt.wantExpected != 0 && errors.As(err, &inv) {
				if inv.Expected != tt.wantExpected || inv.Actual != int64(len(tt.data)) {
					t.Errorf("expected/actual = %d/%d, want %d/%d", inv.Expected, inv.Actual, tt.wantExpected, len(tt.data))
				}
			}
		})
	}
}

func TestParseHead_MinorVersionAccepted(t *testing.T) {
	data := oggtest.OpusHead(1, 0, 48000, 0, 0, nil)
	data[8] = 0x0F
	if _, err := ParseHead(data, "test.opus"); err != nil {
		t.Errorf("ParseHead() with minor version 15 error = %v", err)
	}
}

func isInvalidData(err error) bool {
	var inv *types.InvalidDataError
	return errors.As(err, &inv)
}

func TestParseHeadPage(t *testing.T) {
	head := oggtest.OpusHead(2, 0, 48000, 0, 0, nil)

	tests := []struct {
		name    string
		typ     byte
		segs    []byte
		data    []byte
		wantErr bool
	}{
		{"valid", 0x02, oggtest.Lacing(len(head)), head, false},
		{"not beginning of stream", 0x00, oggtest.Lacing(len(head)), head, true},
		{"continued", 0x03, oggtest.Lacing(len(head)), head, true},
		{"two packets", 0x02, append(oggtest.Lacing(len(head)), 1), append(bytes.Clone(head), 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := oggtest.Page(tt.typ, 0, 1, 0, tt.segs, tt.data)
			r, err := ogg.NewReader(bytes.NewReader(raw), "test.opus")
			if err != nil {
				t.Fatal(err)
			}
			page, err := r.Next()
			if err != nil {
				t.Fatalf("Next() error = %v", err)
			}
			_, err = ParseHeadPage(page, "test.opus")
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseHeadPage() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
