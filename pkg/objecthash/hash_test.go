package objecthash

import (
	"bytes"
	"strings"
	"testing"
)

func TestOfRoundTripsWithGitBlobHash(t *testing.T) {
	// sha1("blob 6\x00Hello\n") is the git-compatible hash for this content.
	got := Of(TypeBlob, []byte("Hello\n"))
	want := Hash("e965047ad7c57865823c7d992b1d046ea66edf78")
	if got != want {
		t.Fatalf("Of() = %s, want %s", got, want)
	}
}

func TestBytesFromBytesRoundTrip(t *testing.T) {
	h := Of(TypeBlob, []byte("round trip"))
	raw, err := h.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	back := FromBytes(raw)
	if back != h {
		t.Fatalf("FromBytes(Bytes()) = %s, want %s", back, h)
	}
	if strings.ToLower(string(h)) != string(h) {
		t.Fatalf("hash %q is not lowercase", h)
	}
}

func TestValidRejectsMalformedHash(t *testing.T) {
	cases := []Hash{
		"",
		"not-hex-at-all-not-hex-at-all-not-hexxx",
		Hash(strings.Repeat("a", 39)),
		Hash(strings.Repeat("g", 40)),
	}
	for _, h := range cases {
		if h.Valid() {
			t.Errorf("Valid(%q) = true, want false", h)
		}
	}
}

func TestFromSliceRejectsWrongLength(t *testing.T) {
	if _, err := FromSlice(make([]byte, 19)); err == nil {
		t.Fatalf("FromSlice(19 bytes) error = nil, want error")
	}
}

func TestOfBytesMatchesSumOfConcatenation(t *testing.T) {
	data := []byte("PACK\x00\x00\x00\x02")
	sum := OfBytes(data)
	if len(sum) != Size {
		t.Fatalf("OfBytes length = %d, want %d", len(sum), Size)
	}
	if bytes.Equal(sum[:], make([]byte, Size)) {
		t.Fatalf("OfBytes returned an all-zero sum")
	}
	// sha1 of the 8 bytes above, with no type/length envelope.
	if got, want := FromBytes(sum), Hash("f51a0660d587aa23b0f382ec32377199e391c5a0"); got != want {
		t.Fatalf("OfBytes = %s, want %s", got, want)
	}
}
