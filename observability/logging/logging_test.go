package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestHandlerRenamesKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(&buf, slog.LevelInfo))
	logger.Debug("hidden")
	logger.Info("position killed", "id", 7)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if line["message"] != "position killed" || line["severity"] != "INFO" {
		t.Fatalf("unexpected line: %v", line)
	}
	if _, ok := line["timestamp"]; !ok {
		t.Fatalf("missing timestamp: %v", line)
	}
}

func TestSetupReturnsLogger(t *testing.T) {
	if logger := Setup("bankd", "test"); logger == nil {
		t.Fatalf("expected a logger")
	}
}

func TestSetupWithOptionsWritesFile(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	path := filepath.Join(t.TempDir(), "bankd.log")
	logger, closer, err := SetupWithOptions("bankd", "test", Options{Level: "debug", File: path, Quiet: true})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	logger.Debug("accrued", MaskField("jwt_secret", "hunter2"))
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !bytes.Contains(raw, []byte(`"service":"bankd"`)) || !bytes.Contains(raw, []byte(RedactedValue)) {
		t.Fatalf("unexpected log output: %s", raw)
	}
	if bytes.Contains(raw, []byte("hunter2")) {
		t.Fatalf("secret leaked: %s", raw)
	}
}

func TestParseLevel(t *testing.T) {
	if lvl, err := ParseLevel("WARN"); err != nil || lvl != slog.LevelWarn {
		t.Fatalf("unexpected level: %v %v", lvl, err)
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatalf("expected unknown level rejection")
	}
}

func TestMaskField(t *testing.T) {
	if attr := MaskField("token", "eyJhbGciOi"); attr.Value.String() != RedactedValue {
		t.Fatalf("token must be masked, got %s", attr.Value)
	}
	if attr := MaskField("Vault", "0x60"); attr.Value.String() != "0x60" {
		t.Fatalf("vault is public, got %s", attr.Value)
	}
	if attr := MaskField("passphrase", ""); attr.Value.String() != "" {
		t.Fatalf("empty values stay empty, got %s", attr.Value)
	}
	for _, key := range []string{"token", "passphrase", "keystore", "jwt_secret"} {
		if IsAllowlisted(key) {
			t.Fatalf("%s must not be allowlisted: %v", key, RedactionAllowlist())
		}
	}
}
