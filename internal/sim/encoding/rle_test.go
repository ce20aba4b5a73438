package encoding

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestRLE_RoundTrip(t *testing.T) {
	in := []uint16{0x0100, 0x0100, 0x0300, 0x0601}
	for i := 0; i < 40; i++ {
		in = append(in, 0x0200)
	}
	in = append(in, 0xFFFF, 5, 5)

	out, err := DecodeRLE(EncodeRLE(in), len(in))
	if err != nil {
		t.Fatalf("DecodeRLE: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len: got %d want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("code %d: got %#x want %#x", i, out[i], in[i])
		}
	}
}

func TestRLE_Empty(t *testing.T) {
	if s := EncodeRLE(nil); s != "" {
		t.Fatalf("encode nil: %q", s)
	}
	out, err := DecodeRLE("", 0)
	if err != nil || len(out) != 0 {
		t.Fatalf("decode empty: %v %v", out, err)
	}
}

func TestRLE_Rejects(t *testing.T) {
	if _, err := DecodeRLE(EncodeRLE(make([]uint16, 65)), 64); !errors.Is(err, ErrTooLong) {
		t.Fatalf("limit: %v", err)
	}
	zeroRun := base64.StdEncoding.EncodeToString([]byte{7, 0})
	if _, err := DecodeRLE(zeroRun, 0); err == nil {
		t.Fatalf("expected zero-run error")
	}
	truncated := base64.StdEncoding.EncodeToString([]byte{7})
	if _, err := DecodeRLE(truncated, 0); err == nil {
		t.Fatalf("expected truncated error")
	}
	if _, err := DecodeRLE("!!", 0); err == nil {
		t.Fatalf("expected base64 error")
	}
}
