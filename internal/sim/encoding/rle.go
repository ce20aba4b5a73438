// Package encoding holds the compact wire forms used by the observer feed.
package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrTooLong = errors.New("rle: decoded length over limit")

// EncodeRLE packs tile codes as base64 of (code, run) uvarint pairs.
func EncodeRLE(codes []uint16) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte
	put := func(v uint64) {
		n := binary.PutUvarint(tmp[:], v)
		buf.Write(tmp[:n])
	}

	for i := 0; i < len(codes); {
		j := i + 1
		for j < len(codes) && codes[j] == codes[i] {
			j++
		}
		put(uint64(codes[i]))
		put(uint64(j - i))
		i = j
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecodeRLE reverses EncodeRLE. A positive limit caps the number of codes
// produced; zero-length runs are rejected.
func DecodeRLE(b64 string, limit int) ([]uint16, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	var out []uint16
	for off := 0; off < len(raw); {
		code, n := binary.Uvarint(raw[off:])
		if n <= 0 {
			return nil, fmt.Errorf("rle: bad code varint at byte %d", off)
		}
		off += n
		run, n := binary.Uvarint(raw[off:])
		if n <= 0 {
			return nil, fmt.Errorf("rle: bad run varint at byte %d", off)
		}
		off += n
		if code > 0xFFFF {
			return nil, fmt.Errorf("rle: code %d out of range", code)
		}
		if run == 0 {
			return nil, fmt.Errorf("rle: empty run at byte %d", off)
		}
		if limit > 0 && uint64(len(out))+run > uint64(limit) {
			return nil, ErrTooLong
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, uint16(code))
		}
	}
	return out, nil
}
