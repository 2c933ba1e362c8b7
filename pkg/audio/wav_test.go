package audio

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestWriteWAVHeaderLayout(t *testing.T) {
	pcm := make([]byte, 100)
	for i := range pcm {
		pcm[i] = byte(i)
	}

	var buf bytes.Buffer
	if err := WriteWAVHeader(&buf, pcm, 16000); err != nil {
		t.Fatalf("WriteWAVHeader returned error: %v", err)
	}
	out := buf.Bytes()

	if len(out) != 44+len(pcm) {
		t.Fatalf("output length=%d, want %d", len(out), 44+len(pcm))
	}
	if string(out[0:4]) != "RIFF" || string(out[8:12]) != "WAVE" {
		t.Fatalf("missing RIFF/WAVE markers: %q %q", out[0:4], out[8:12])
	}
	if string(out[12:16]) != "fmt " || string(out[36:40]) != "data" {
		t.Fatalf("missing fmt/data markers: %q %q", out[12:16], out[36:40])
	}
	if got := binary.LittleEndian.Uint32(out[4:8]); got != 136 {
		t.Fatalf("riff chunk size=%d, want 136", got)
	}
	if got := binary.LittleEndian.Uint32(out[16:20]); got != 16 {
		t.Fatalf("fmt chunk size=%d, want 16", got)
	}
	if got := binary.LittleEndian.Uint16(out[20:22]); got != 1 {
		t.Fatalf("format tag=%d, want 1", got)
	}
	if got := binary.LittleEndian.Uint16(out[22:24]); got != 1 {
		t.Fatalf("channels=%d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(out[24:28]); got != 16000 {
		t.Fatalf("sample rate=%d, want 16000", got)
	}
	if got := binary.LittleEndian.Uint32(out[28:32]); got != 32000 {
		t.Fatalf("byte rate=%d, want 32000", got)
	}
	if got := binary.LittleEndian.Uint16(out[32:34]); got != 2 {
		t.Fatalf("block align=%d, want 2", got)
	}
	if got := binary.LittleEndian.Uint16(out[34:36]); got != 16 {
		t.Fatalf("bits per sample=%d, want 16", got)
	}
	if got := binary.LittleEndian.Uint32(out[40:44]); got != 100 {
		t.Fatalf("data size=%d, want 100", got)
	}
	if !bytes.Equal(out[44:], pcm) {
		t.Fatal("pcm payload does not match input")
	}
}

func TestWriteWAVHeaderEmptyPCM(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteWAVHeader(&buf, nil, 8000); err != nil {
		t.Fatalf("WriteWAVHeader returned error: %v", err)
	}
	out := buf.Bytes()
	if len(out) != 44 {
		t.Fatalf("output length=%d, want 44", len(out))
	}
	if got := binary.LittleEndian.Uint32(out[4:8]); got != 36 {
		t.Fatalf("riff chunk size=%d, want 36", got)
	}
	if got := binary.LittleEndian.Uint32(out[40:44]); got != 0 {
		t.Fatalf("data size=%d, want 0", got)
	}
}

func TestEncodeWAVMatchesWriter(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}

	var buf bytes.Buffer
	if err := WriteWAVHeader(&buf, pcm, 24000); err != nil {
		t.Fatalf("WriteWAVHeader returned error: %v", err)
	}
	if got := EncodeWAV(pcm, 24000); !bytes.Equal(got, buf.Bytes()) {
		t.Fatal("EncodeWAV output differs from WriteWAVHeader output")
	}
}

func TestFloat64SliceToPCM16Clamps(t *testing.T) {
	pcm := Float64SliceToPCM16([]float64{0, 1.5, -1.5})
	if len(pcm) != 6 {
		t.Fatalf("pcm length=%d, want 6", len(pcm))
	}
	if got := int16(binary.LittleEndian.Uint16(pcm[0:2])); got != 0 {
		t.Fatalf("sample 0=%d, want 0", got)
	}
	if got := int16(binary.LittleEndian.Uint16(pcm[2:4])); got != 32767 {
		t.Fatalf("sample 1=%d, want 32767", got)
	}
	if got := int16(binary.LittleEndian.Uint16(pcm[4:6])); got != -32768 {
		t.Fatalf("sample 2=%d, want -32768", got)
	}
}
