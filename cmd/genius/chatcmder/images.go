package chatcmder

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
)

// loadImages reads image files and encodes them as data URIs.
func loadImages(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	out := make([]string, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("could not read image %s: %w", p, err)
		}
		mediaType := http.DetectContentType(data)
		out = append(out, "data:"+mediaType+";base64,"+base64.StdEncoding.EncodeToString(data))
	}
	return out, nil
}
