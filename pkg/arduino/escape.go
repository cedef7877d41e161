// Copyright (c) Andreas Eckleder 2018, 2024. All rights reserved.

package arduino

// Escape codec for binary payloads carried in '\r'-terminated frames.
// Only the data-response frames of the bridge dialect are escaped;
// debug and status frames are plain text.

import "fmt"

const escapeByte = 0x1b

// Escape codes. escapeByte followed by one of these stands for the
// reserved byte named in the constant.
const (
	escapedTerminator = 'r' // FrameTerminator (0x0d)
	escapedEscape     = 'e' // escapeByte itself
)

// Escape substitutes every reserved byte in data by its two-byte escape
// sequence. The result contains no FrameTerminator.
func Escape(data []byte) []byte {
	result := make([]byte, 0, len(data))
	for _, b := range data {
		switch b {
		case FrameTerminator:
			result = append(result, escapeByte, escapedTerminator)
		case escapeByte:
			result = append(result, escapeByte, escapedEscape)
		default:
			result = append(result, b)
		}
	}
	return result
}

// Unescape is the exact inverse of Escape. A dangling escape byte or an
// unknown escape code means the frame boundary was lost; both are
// reported as errors.
func Unescape(data []byte) ([]byte, error) {
	result := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		b := data[i]
		if b != escapeByte {
			result = append(result, b)
			continue
		}
		i++
		if i >= len(data) {
			return nil, fmt.Errorf("dangling escape code at end of frame")
		}
		switch data[i] {
		case escapedTerminator:
			result = append(result, FrameTerminator)
		case escapedEscape:
			result = append(result, escapeByte)
		default:
			return nil, fmt.Errorf("unknown escape code %#x", data[i])
		}
	}
	return result, nil
}
