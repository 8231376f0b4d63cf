package provider

import "strings"

const defaultImageMediaType = "image/jpeg"

// splitDataURI splits a base64 data URI into its media type and payload.
// Raw base64 input is returned unchanged with the default media type.
func splitDataURI(uri string) (mediaType, data string) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return defaultImageMediaType, uri
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return defaultImageMediaType, rest
	}

	mediaType, _, _ = strings.Cut(meta, ";")
	if mediaType == "" {
		mediaType = defaultImageMediaType
	}
	return mediaType, payload
}
