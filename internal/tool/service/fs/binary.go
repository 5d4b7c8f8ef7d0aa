package fs

// binarySampleSize matches git's heuristic of scanning the first 8000 bytes for NUL.
const binarySampleSize = 8000

// IsBinary reports whether data looks binary. UTF-16 and UTF-32 BOMs are treated as text.
func IsBinary(data []byte) bool {
	if len(data) >= 2 &&
		((data[0] == 0xFF && data[1] == 0xFE) || (data[0] == 0xFE && data[1] == 0xFF)) {
		return false
	}
	if len(data) >= 4 && data[0] == 0x00 && data[1] == 0x00 && data[2] == 0xFE && data[3] == 0xFF {
		return false
	}
	n := min(len(data), binarySampleSize)
	for i := range n {
		if data[i] == 0 {
			return true
		}
	}
	return false
}
