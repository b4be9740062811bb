// Package validation guards the upload path: only container formats the
// transcoder is known to handle are let through, checked by extension and
// by content.
package validation

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
)

// ErrDisallowedFileType is returned when an upload is not an accepted video.
var ErrDisallowedFileType = errors.New("file type not allowed")

// allowedExtensions is the set of accepted upload extensions.
var allowedExtensions = map[string]bool{
	".mp4":  true,
	".m4v":  true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
	".webm": true,
}

// allowedMIMETypes is the allowlist of detected content types.
var allowedMIMETypes = map[string]bool{
	"video/mp4":        true,
	"video/quicktime":  true,
	"video/webm":       true,
	"video/x-matroska": true,
	"video/x-msvideo":  true,
}

// magicBytesBufferSize is the number of bytes read for content detection.
const magicBytesBufferSize = 512

// ValidateVideoUpload checks both the filename extension and the file's
// magic bytes, then resets the reader to the beginning. An upload passes
// only when both agree it is an accepted video container.
func ValidateVideoUpload(reader io.ReadSeeker, filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return fmt.Errorf("%w: extension %q", ErrDisallowedFileType, ext)
	}

	mime, err := detectContentType(reader)
	if err != nil {
		return err
	}
	if !allowedMIMETypes[mime] {
		return fmt.Errorf("%w: detected %s", ErrDisallowedFileType, mime)
	}
	return nil
}

// detectContentType reads up to 512 bytes, detects the MIME type, and seeks
// the reader back to the start.
func detectContentType(reader io.ReadSeeker) (string, error) {
	buf := make([]byte, magicBytesBufferSize)
	n, err := reader.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	if n == 0 {
		return "application/octet-stream", nil
	}
	buf = buf[:n]

	if mime := detectVideoMagicBytes(buf); mime != "" {
		return mime, nil
	}
	return http.DetectContentType(buf), nil
}

// detectVideoMagicBytes recognizes the video containers that
// http.DetectContentType misses or mislabels.
func detectVideoMagicBytes(buf []byte) string {
	if len(buf) < 4 {
		return ""
	}

	// Matroska and WebM share the EBML header (0x1A 0x45 0xDF 0xA3).
	if buf[0] == 0x1A && buf[1] == 0x45 && buf[2] == 0xDF && buf[3] == 0xA3 {
		return "video/x-matroska"
	}

	// AVI: RIFF....AVI (bytes 0-3: RIFF, bytes 8-10: AVI)
	if len(buf) >= 12 {
		if buf[0] == 'R' && buf[1] == 'I' && buf[2] == 'F' && buf[3] == 'F' &&
			buf[8] == 'A' && buf[9] == 'V' && buf[10] == 'I' {
			return "video/x-msvideo"
		}
	}

	// MP4/QuickTime: ftyp box at offset 4 ([4 bytes size]["ftyp"][brand]).
	if len(buf) >= 12 {
		if buf[4] == 'f' && buf[5] == 't' && buf[6] == 'y' && buf[7] == 'p' {
			if string(buf[8:12]) == "qt  " {
				return "video/quicktime"
			}
			return "video/mp4"
		}
	}

	return ""
}
