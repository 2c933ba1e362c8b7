package audio

import (
	"bytes"
	"encoding/binary"
	"io"
)

const (
	wavHeaderSize = 44
	// fmt chunk values for the only layout we emit: 16-bit mono PCM.
	wavFormatPCM    = 1
	wavChannels     = 1
	wavBitsPerFrame = 16
)

// WriteWAVHeader writes a canonical 44-byte RIFF/WAVE header for 16-bit
// mono little-endian PCM, followed by the raw PCM bytes. The input is
// assumed to already be 16-bit mono; callers are responsible for converting
// beforehand.
func WriteWAVHeader(w io.Writer, pcm []byte, sampleRate int) error {
	header := make([]byte, wavHeaderSize)

	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+len(pcm)))
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(header[22:24], wavChannels)
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(sampleRate)*2)
	binary.LittleEndian.PutUint16(header[32:34], 2)
	binary.LittleEndian.PutUint16(header[34:36], wavBitsPerFrame)

	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(pcm)))

	if _, err := w.Write(header); err != nil {
		return err
	}
	if len(pcm) == 0 {
		return nil
	}
	_, err := w.Write(pcm)
	return err
}

// EncodeWAV returns a complete WAV container for 16-bit mono PCM bytes.
func EncodeWAV(pcm []byte, sampleRate int) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcm)))
	// bytes.Buffer writes cannot fail.
	_ = WriteWAVHeader(buf, pcm, sampleRate)
	return buf.Bytes()
}
