package wire

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"
)

func mustDecode(t *testing.T, b []byte) (time.Time, []byte) {
	t.Helper()
	at, p, err := DecodeEntry(b)
	if err != nil {
		t.Fatalf("DecodeEntry error: %v", err)
	}
	return at, p
}

func TestEntryRoundTrip(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_123)
	cases := [][]byte{
		nil,
		[]byte("null"),
		{0, 1, 2, 3, 4},
	}
	for _, payload := range cases {
		enc := EncodeEntry(now, payload)
		at, p := mustDecode(t, enc)
		if !at.Equal(now) {
			t.Fatalf("storedAt mismatch: got %v want %v", at, now)
		}
		if !bytes.Equal(p, payload) {
			t.Fatalf("payload mismatch: got %x want %x", p, payload)
		}
	}
}

func TestEntryRejectsTrailingBytes(t *testing.T) {
	enc := EncodeEntry(time.Now(), []byte("x"))
	enc = append(enc, 0xDE, 0xAD)
	if _, _, err := DecodeEntry(enc); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}
}

func TestEntryCorruptHeaders(t *testing.T) {
	enc := EncodeEntry(time.Now(), []byte("abc"))

	badMagic := append([]byte(nil), enc...)
	badMagic[0] = 'X'
	if _, _, err := DecodeEntry(badMagic); err == nil {
		t.Fatalf("expected error on bad magic")
	}

	badVer := append([]byte(nil), enc...)
	badVer[4] = version + 1
	if _, _, err := DecodeEntry(badVer); err == nil {
		t.Fatalf("expected error on bad version")
	}

	badKind := append([]byte(nil), enc...)
	badKind[5] = kindValue + 1
	if _, _, err := DecodeEntry(badKind); err == nil {
		t.Fatalf("expected error on bad kind")
	}

	// vlen lives at 14..17 (4 magic +1 ver +1 kind +8 storedAt)
	tooLong := append([]byte(nil), enc...)
	binary.BigEndian.PutUint32(tooLong[14:18], uint32(len("abc")+1))
	if _, _, err := DecodeEntry(tooLong); err == nil {
		t.Fatalf("expected error on vlen beyond buffer")
	}

	if _, _, err := DecodeEntry(enc[:len(enc)-1]); err == nil {
		t.Fatalf("expected error on truncated buffer")
	}
	if _, _, err := DecodeEntry([]byte("plain redis string")); err == nil {
		t.Fatalf("expected error on foreign value")
	}
}

func TestEntryZeroCopyPayload(t *testing.T) {
	enc := EncodeEntry(time.Now(), []byte("Z"))
	_, p := mustDecode(t, enc)
	p[0] = 'Q'
	_, p2 := mustDecode(t, enc)
	if p2[0] != 'Q' {
		t.Fatalf("expected zero-copy slice into enc buffer")
	}
}
