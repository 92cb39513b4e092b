// Package imagex classifies and normalizes image message payloads.
//
// The chat wire channel carries images as opaque strings: a data URL, a raw
// base64 blob, or a remote http(s) URL, depending on which side produced the
// payload. Everything downstream (matching, display, the gallery) works on
// the canonical data-URL form produced here.
package imagex

import (
	"errors"
	"strings"
)

// ErrMalformedImagePayload is returned when a payload that should be a data
// URL cannot be split into its base64 part.
var ErrMalformedImagePayload = errors.New("malformed image payload: no base64 section")

const dataURLPrefix = "data:image"

// minBase64Len is the minimum length for a bare string to be considered a
// raw base64 image. Real image payloads are far longer than this.
const minBase64Len = 100

// IsImageDataURL reports whether s is an image data URL.
func IsImageDataURL(s string) bool {
	return strings.HasPrefix(s, dataURLPrefix)
}

// IsRemoteImageURL reports whether s is an http(s) URL.
func IsRemoteImageURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// LooksLikeRawBase64Image reports whether s is probably the raw base64 bytes
// of an image: long enough, no whitespace, base64 alphabet only, and not
// already a URL or data URL.
//
// This is a heuristic. A long alphanumeric token that happens to stay within
// the base64 alphabet will be classified as an image. That false positive is
// an accepted trade-off of a wire format without message type metadata; do
// not tighten this check without changing the wire contract.
func LooksLikeRawBase64Image(s string) bool {
	if len(s) < minBase64Len {
		return false
	}
	if IsRemoteImageURL(s) || IsImageDataURL(s) {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '+' || r == '/' || r == '=':
		default:
			return false
		}
	}
	return true
}

// IsImageContent reports whether a message payload is an image in any of the
// three accepted encodings.
func IsImageContent(s string) bool {
	if s == "" {
		return false
	}
	return IsImageDataURL(s) || IsRemoteImageURL(s) || LooksLikeRawBase64Image(s)
}

// NormalizeImageContent canonicalizes an image payload for display and
// comparison. Remote URLs and data URLs pass through unchanged; anything
// else is treated as raw base64 and wrapped into a jpeg data URL.
func NormalizeImageContent(s string) string {
	if IsRemoteImageURL(s) || IsImageDataURL(s) {
		return s
	}
	return Base64ToDataURL(s, "image/jpeg")
}

// Base64ToDataURL wraps raw base64 bytes into a data URL with the given MIME
// type.
func Base64ToDataURL(b64, mimeType string) string {
	return "data:" + mimeType + ";base64," + b64
}

// ExtractBase64 returns the base64 section of a data URL, i.e. everything
// after the first comma.
func ExtractBase64(dataURL string) (string, error) {
	_, b64, ok := strings.Cut(dataURL, ",")
	if !ok {
		return "", ErrMalformedImagePayload
	}
	return b64, nil
}
