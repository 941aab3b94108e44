package crypto

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestParseAddressForms(t *testing.T) {
	want := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	hexAddr, err := ParseAddress(want.Hex())
	if err != nil {
		t.Fatalf("parse hex: %v", err)
	}
	if hexAddr != want {
		t.Fatalf("unexpected hex address: got %s want %s", hexAddr, want)
	}

	encoded, err := Address{want}.Bech32(AccountPrefix)
	if err != nil {
		t.Fatalf("bech32: %v", err)
	}
	if !strings.HasPrefix(encoded, "alpha1") {
		t.Fatalf("unexpected bech32 prefix: %s", encoded)
	}
	decoded, err := ParseAddress(encoded)
	if err != nil {
		t.Fatalf("parse bech32: %v", err)
	}
	if decoded != want {
		t.Fatalf("unexpected bech32 address: got %s want %s", decoded, want)
	}

	for _, bad := range []string{"", "0x1234", "alpha1qqqq"} {
		if _, err := ParseAddress(bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
	if _, err := NewAddress([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected short address rejection")
	}
}

func TestKeystoreRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	path := filepath.Join(t.TempDir(), "keeper.keystore")
	if err := SaveToKeystore(path, key, "secret"); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadFromKeystore(path, "secret")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.PubKey().Address() != key.PubKey().Address() {
		t.Fatalf("address changed across keystore round trip")
	}
	if _, err := LoadFromKeystore(path, "wrong"); err == nil {
		t.Fatalf("expected wrong passphrase to fail")
	}
}
