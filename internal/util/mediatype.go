package util

// DetectImageMediaType returns the MIME type of an image payload based on
// magic bytes, or empty string when the format is not recognized.
func DetectImageMediaType(data []byte) string {
	if len(data) < 4 {
		return ""
	}
	// PNG magic bytes
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// GIF
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 {
		return "image/gif"
	}
	// WebP
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	// JPEG
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	return ""
}

// IsSupportedImageType reports whether the sniffed media type is one the
// recognition providers accept.
func IsSupportedImageType(mediaType string) bool {
	switch mediaType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	}
	return false
}

// DetectAudioMediaType returns the MIME type of an audio payload based on
// magic bytes, or empty string when the container is not recognized.
func DetectAudioMediaType(data []byte) string {
	if len(data) < 4 {
		return ""
	}
	// EBML header (webm)
	if data[0] == 0x1A && data[1] == 0x45 && data[2] == 0xDF && data[3] == 0xA3 {
		return "audio/webm"
	}
	// OggS
	if data[0] == 0x4F && data[1] == 0x67 && data[2] == 0x67 && data[3] == 0x53 {
		return "audio/ogg"
	}
	// ID3 (mp3) or MPEG frame sync
	if (data[0] == 0x49 && data[1] == 0x44 && data[2] == 0x33) ||
		(data[0] == 0xFF && data[1]&0xE0 == 0xE0) {
		return "audio/mpeg"
	}
	// RIFF....WAVE
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x41 && data[10] == 0x56 && data[11] == 0x45 {
		return "audio/wav"
	}
	// ....ftyp (m4a/mp4)
	if len(data) >= 8 && data[4] == 0x66 && data[5] == 0x74 && data[6] == 0x79 && data[7] == 0x70 {
		return "audio/mp4"
	}
	return ""
}
