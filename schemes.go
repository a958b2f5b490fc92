package alwaysfetch

import (
	"encoding/base64"
	"net/url"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/always-cache/always-fetch/pkg/fetcherr"
)

func readFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fetcherr.Wrap(fetcherr.FileReadError, err, "read %s", path)
	}
	if !utf8.Valid(b) {
		return "", fetcherr.New(fetcherr.FileReadError, "%s is not valid UTF-8", path)
	}
	return string(b), nil
}

// decodeData decodes the part of a data URL after "data:".
func decodeData(raw string) (string, error) {
	mediaType, payload, ok := strings.Cut(raw, ",")
	if !ok {
		return "", fetcherr.New(fetcherr.DecodeError, "data URL without comma")
	}

	if strings.HasSuffix(mediaType, ";base64") {
		// padding is optional
		b, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return "", fetcherr.Wrap(fetcherr.DecodeError, err, "base64 payload")
		}
		if !utf8.Valid(b) {
			return "", fetcherr.New(fetcherr.DecodeError, "base64 payload is not valid UTF-8")
		}
		return string(b), nil
	}

	s, err := url.PathUnescape(payload)
	if err != nil {
		return "", fetcherr.Wrap(fetcherr.DecodeError, err, "percent-encoded payload")
	}
	if !utf8.ValidString(s) {
		return "", fetcherr.New(fetcherr.DecodeError, "percent-encoded payload is not valid UTF-8")
	}
	return s, nil
}
