package imaging

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrBadDataURI is returned for strings that are not base64 data URIs.
var ErrBadDataURI = errors.New("not a base64 data URI")

// EncodeDataURI builds "data:<mime>;base64,<payload>".
func EncodeDataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64Encode(data)
}

func base64Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// SplitDataURI returns the mime type and base64 payload of a data URI.
func SplitDataURI(uri string) (mime, payload string, err error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", "", ErrBadDataURI
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", "", ErrBadDataURI
	}
	mime, ok = strings.CutSuffix(header, ";base64")
	if !ok {
		return "", "", ErrBadDataURI
	}
	return mime, payload, nil
}

// DecodeDataURI returns the mime type and raw bytes of a data URI.
func DecodeDataURI(uri string) (string, []byte, error) {
	mime, payload, err := SplitDataURI(uri)
	if err != nil {
		return "", nil, err
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode data URI payload: %w", err)
	}
	return mime, data, nil
}

// PayloadBytes is the decoded size of a base64 payload:
// ceil(len*3/4) minus one byte per trailing pad character (at most two).
func PayloadBytes(payload string) int {
	n := (len(payload)*3 + 3) / 4
	switch {
	case strings.HasSuffix(payload, "=="):
		n -= 2
	case strings.HasSuffix(payload, "="):
		n--
	}
	return n
}
