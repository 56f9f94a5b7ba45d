package wire

import (
	"bytes"
	"math"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		gen     uint64
		payload []byte
	}{
		{0, nil},
		{42, []byte(`{"id":1}`)},
		{math.MaxUint64, []byte{0, 1, 2, 3, 4}},
	}
	for _, tc := range cases {
		gen, p, err := Decode(Encode(tc.gen, tc.payload))
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if gen != tc.gen {
			t.Fatalf("gen mismatch: got %d want %d", gen, tc.gen)
		}
		if !bytes.Equal(p, tc.payload) {
			t.Fatalf("payload mismatch: got %x want %x", p, tc.payload)
		}
	}
}

func TestRejectsTrailingAndTruncated(t *testing.T) {
	enc := Encode(7, []byte("abc"))

	if _, _, err := Decode(append(append([]byte(nil), enc...), 0xDE, 0xAD)); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}
	if _, _, err := Decode(enc[:len(enc)-1]); err == nil {
		t.Fatalf("expected error on truncated payload")
	}
	if _, _, err := Decode(enc[:hdrLen-1]); err == nil {
		t.Fatalf("expected error on short header")
	}
}

func TestRejectsBadHeader(t *testing.T) {
	enc := Encode(1, []byte("abc"))

	badMagic := append([]byte(nil), enc...)
	badMagic[0] = 'X'
	if _, _, err := Decode(badMagic); err != ErrCorrupt {
		t.Fatalf("expected ErrCorrupt on bad magic, got %v", err)
	}

	badVer := append([]byte(nil), enc...)
	badVer[4] = version + 1
	if _, _, err := Decode(badVer); err != ErrCorrupt {
		t.Fatalf("expected ErrCorrupt on bad version, got %v", err)
	}

	if _, _, err := Decode([]byte(`[{"id":1}]`)); err != ErrCorrupt {
		t.Fatalf("expected ErrCorrupt on foreign value, got %v", err)
	}
}
