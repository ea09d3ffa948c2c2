package track

import "testing"

func TestEncodingString(t *testing.T) {
	cases := map[Encoding]string{
		EncodingUnknown: "unknown",
		EncodingFM:      "FM",
		EncodingMFM:     "MFM",
		EncodingGCR:     "GCR",
	}
	for enc, want := range cases {
		if got := enc.String(); got != want {
			t.Errorf("Encoding(%d).String() = %q, want %q", enc, got, want)
		}
	}
}
