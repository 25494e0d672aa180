package noise

import (
	"bytes"
	"testing"
)

func TestLabeledKey_DomainSeparation(t *testing.T) {
	input := make([]byte, 32)
	input[0] = 1

	key1 := deriveLabeledKey(MACLabel, input)
	key2 := deriveLabeledKey(PeerInfoLabel, input)
	if bytes.Equal(key1[:], key2[:]) {
		t.Fatal("different labels should produce different keys")
	}

	input[0] = 2
	key3 := deriveLabeledKey(MACLabel, input)
	if bytes.Equal(key1[:], key3[:]) {
		t.Fatal("different inputs should produce different keys")
	}
}

func TestMAC_Computation(t *testing.T) {
	key := deriveLabeledKey(MACLabel, []byte("psk"))
	msg := []byte("test message")

	mac := ComputeMAC(msg, &key)
	if len(mac) != MACSize {
		t.Fatalf("MAC should be %d bytes, got %d", MACSize, len(mac))
	}
	if !bytes.Equal(mac, ComputeMAC(msg, &key)) {
		t.Fatal("MAC should be deterministic")
	}
	if bytes.Equal(mac, ComputeMAC([]byte("different message"), &key)) {
		t.Fatal("different messages should produce different MACs")
	}
}

func TestMAC_Verification(t *testing.T) {
	key := deriveLabeledKey(MACLabel, []byte("psk"))
	other := deriveLabeledKey(MACLabel, []byte("other psk"))
	msg := AppendMAC([]byte("handshake bytes"), &key)

	t.Run("valid", func(t *testing.T) {
		if !VerifyMAC(msg, &key) {
			t.Fatal("MAC verification should pass for valid message")
		}
	})
	t.Run("foreign network", func(t *testing.T) {
		if VerifyMAC(msg, &other) {
			t.Fatal("MAC verification should fail under a different key")
		}
	})
	t.Run("corrupted", func(t *testing.T) {
		corrupted := append([]byte(nil), msg...)
		corrupted[0] ^= 0xff
		if VerifyMAC(corrupted, &key) {
			t.Fatal("MAC verification should fail for corrupted message")
		}
	})
	t.Run("truncated", func(t *testing.T) {
		if VerifyMAC(msg[:MACSize-1], &key) {
			t.Fatal("MAC verification should fail for truncated message")
		}
	})
}
