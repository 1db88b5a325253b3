package wire

import "testing"

func TestUvarintRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 127, 128, 300, 16384, 1 << 20, 1<<64 - 1}

	for _, x := range cases {
		buf := putUvarint(nil, x)
		got, n, err := getUvarint(buf)
		if err != nil {
			t.Fatalf("getUvarint(%d): %v", x, err)
		}
		if n != len(buf) {
			t.Fatalf("getUvarint(%d): consumed %d bytes, want %d", x, n, len(buf))
		}
		if got != x {
			t.Fatalf("getUvarint(%d): got %d", x, got)
		}
	}
}

func TestUvarintZeroIsOneByte(t *testing.T) {
	buf := putUvarint(nil, 0)
	if len(buf) != 1 || buf[0] != 0 {
		t.Fatalf("putUvarint(0) = %v, want [0]", buf)
	}
}

func TestUvarintOneByteBoundary(t *testing.T) {
	buf := putUvarint(nil, 127)
	if len(buf) != 1 {
		t.Fatalf("putUvarint(127) used %d bytes, want 1", len(buf))
	}
	buf = putUvarint(nil, 128)
	if len(buf) != 2 {
		t.Fatalf("putUvarint(128) used %d bytes, want 2", len(buf))
	}
}

func TestUvarintTruncated(t *testing.T) {
	buf := putUvarint(nil, 1<<20)
	_, _, err := getUvarint(buf[:len(buf)-1])
	if err != ErrVarintTooShort {
		t.Fatalf("getUvarint(truncated) = %v, want ErrVarintTooShort", err)
	}
}

func TestUvarintEmptyBuffer(t *testing.T) {
	_, _, err := getUvarint(nil)
	if err != ErrVarintTooShort {
		t.Fatalf("getUvarint(nil) = %v, want ErrVarintTooShort", err)
	}
}

func TestUvarintAppendsToExistingBuffer(t *testing.T) {
	buf := []byte{0xFF}
	buf = putUvarint(buf, 300)
	if buf[0] != 0xFF {
		t.Fatalf("putUvarint clobbered existing prefix: %v", buf)
	}
	got, n, err := getUvarint(buf[1:])
	if err != nil {
		t.Fatalf("getUvarint: %v", err)
	}
	if got != 300 || n != len(buf)-1 {
		t.Fatalf("getUvarint = %d, %d, want 300, %d", got, n, len(buf)-1)
	}
}
