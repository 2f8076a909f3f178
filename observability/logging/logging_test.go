package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.log")
	logger := Setup("taxledgerd", "test", FileOptions{Path: path, MaxSizeMB: 1})
	logger.Info("operation applied", "op", "transfer", MaskField("token", "secret"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["message"] != "operation applied" || entry["severity"] != "INFO" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if entry["service"] != "taxledgerd" || entry["env"] != "test" {
		t.Fatalf("missing service attributes: %v", entry)
	}
	if entry["token"] != RedactedValue {
		t.Fatalf("secret not masked: %v", entry["token"])
	}
	if entry["op"] != "transfer" {
		t.Fatalf("allowlisted field changed: %v", entry["op"])
	}
}

func TestMaskField(t *testing.T) {
	if attr := MaskField("Service", "x"); attr.Value.String() != "x" {
		t.Fatalf("allowlisted key masked")
	}
	if attr := MaskField("authorization", ""); attr.Value.String() != "" {
		t.Fatalf("empty value should pass through")
	}
	if attr := MaskField("authorization", "Bearer abc"); attr.Value.String() != RedactedValue {
		t.Fatalf("sensitive key not masked")
	}
}
