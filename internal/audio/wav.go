package audio

import "encoding/binary"

// BuildWAV wraps 16-bit PCM samples in a RIFF/WAVE header so the blob is
// self-describing when handed to object storage or the batch recognizer.
func BuildWAV(pcm []byte, sampleRateHz, channels int) []byte {
	const bitsPerSample = 16

	byteRate := sampleRateHz * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8
	dataLen := len(pcm)

	buf := make([]byte, 44+dataLen)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(buf[20:22], 1)  // PCM format
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRateHz))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))
	copy(buf[44:], pcm)

	return buf
}

// IsWAV reports whether data already carries a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WAVE"
}

const wavHeaderSize = 44

// PCM returns the raw sample data, removing a leading RIFF/WAVE header
// when present. The streaming recognizer expects bare LINEAR16 samples.
func PCM(data []byte) []byte {
	if IsWAV(data) && len(data) >= wavHeaderSize {
		return data[wavHeaderSize:]
	}
	return data
}
