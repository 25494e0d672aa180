package chacha20

import (
	"bytes"
	"errors"
	"meshvpn/application/network/auth"
	"testing"
)

func channelPair(t *testing.T) (*DataChannel, *DataChannel) {
	t.Helper()
	var a, b auth.KeyMaterial
	for i := range a.SendKey {
		a.SendKey[i] = byte(i)
		a.RecvKey[i] = byte(0xff - i)
	}
	b.SendKey, b.RecvKey = a.RecvKey, a.SendKey

	left, err := NewDataChannel(a, 100, 500, testWindowSize)
	if err != nil {
		t.Fatalf("left channel: %v", err)
	}
	right, err := NewDataChannel(b, 500, 100, testWindowSize)
	if err != nil {
		t.Fatalf("right channel: %v", err)
	}
	return left, right
}

func TestDataChannel_RoundTrip(t *testing.T) {
	left, right := channelPair(t)
	header := []byte{0, 0, 0, 7}

	packet := left.Seal(header, []byte("frame"))
	if !bytes.HasPrefix(packet, header) {
		t.Fatal("sealed packet must start with the clear header")
	}
	plain, err := right.Open(packet, len(header))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if string(plain) != "frame" {
		t.Fatalf("unexpected plaintext %q", plain)
	}
	if right.Quality() != 1 {
		t.Fatalf("expected quality 1, got %d", right.Quality())
	}
}

func TestDataChannel_RejectsReplay(t *testing.T) {
	left, right := channelPair(t)
	packet := left.Seal(nil, []byte("once"))
	if _, err := right.Open(packet, 0); err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := right.Open(packet, 0); !errors.Is(err, ErrNonUniqueNonce) {
		t.Fatalf("expected ErrNonUniqueNonce on replay, got %v", err)
	}
}

func TestDataChannel_TamperedPacketDoesNotAdvanceWindow(t *testing.T) {
	left, right := channelPair(t)
	packet := left.Seal([]byte{1}, []byte("payload"))
	tampered := append([]byte(nil), packet...)
	tampered[len(tampered)-1] ^= 0x01

	if _, err := right.Open(tampered, 1); err == nil {
		t.Fatal("expected tampered packet to fail")
	}
	if right.Quality() != 0 {
		t.Fatal("failed authentication must not consume a window slot")
	}
	if _, err := right.Open(packet, 1); err != nil {
		t.Fatalf("genuine packet must still be accepted: %v", err)
	}
}

func TestDataChannel_TooShort(t *testing.T) {
	_, right := channelPair(t)
	if _, err := right.Open(make([]byte, DataOverhead-1), 0); !errors.Is(err, ErrPacketTooShort) {
		t.Fatalf("expected ErrPacketTooShort, got %v", err)
	}
}
