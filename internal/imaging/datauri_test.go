package imaging

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestPayloadBytes(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    int
	}{
		{"empty", "", 0},
		{"no padding", "QUJD", 3},
		{"one pad", "QUI=", 2},
		{"two pads", "QQ==", 1},
		{"longer", "aGVsbG8gd29ybGQ=", 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PayloadBytes(tt.payload); got != tt.want {
				t.Errorf("PayloadBytes(%q) = %d, want %d", tt.payload, got, tt.want)
			}
		})
	}
}

func TestPayloadBytes_MatchesDecodedLength(t *testing.T) {
	for n := 0; n < 64; n++ {
		data := make([]byte, n)
		payload := base64.StdEncoding.EncodeToString(data)
		if got := PayloadBytes(payload); got != n {
			t.Errorf("PayloadBytes for %d bytes = %d", n, got)
		}
	}
}

func TestDataURIRoundTrip(t *testing.T) {
	uri := EncodeDataURI("image/jpeg", []byte{0xff, 0xd8, 0xff})

	mime, data, err := DecodeDataURI(uri)
	if err != nil {
		t.Fatalf("DecodeDataURI failed: %v", err)
	}
	if mime != "image/jpeg" || len(data) != 3 || data[0] != 0xff {
		t.Errorf("got mime %q data %v", mime, data)
	}
}

func TestSplitDataURI_Invalid(t *testing.T) {
	for _, uri := range []string{
		"",
		"image/png;base64,AAAA",
		"data:image/png,AAAA",
		"data:image/png;base64",
	} {
		if _, _, err := SplitDataURI(uri); !errors.Is(err, ErrBadDataURI) {
			t.Errorf("SplitDataURI(%q) err = %v, want ErrBadDataURI", uri, err)
		}
	}
}
