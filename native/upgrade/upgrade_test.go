package upgrade

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func baseLayout() Layout {
	return Layout{Version: 1, Fields: []string{"metadata", "supply", "balances"}, Reserved: 5}
}

func TestCheckCompatibleAppendOnly(t *testing.T) {
	current := baseLayout()
	cases := []struct {
		name string
		next Layout
		ok   bool
	}{
		{"identical", baseLayout(), true},
		{"append consumes gap", Layout{Version: 2, Fields: []string{"metadata", "supply", "balances", "vesting"}, Reserved: 4}, true},
		{"append without version bump", Layout{Version: 1, Fields: []string{"metadata", "supply", "balances", "vesting"}, Reserved: 4}, false},
		{"append without shrinking gap", Layout{Version: 2, Fields: []string{"metadata", "supply", "balances", "vesting"}, Reserved: 5}, false},
		{"reorder", Layout{Version: 2, Fields: []string{"supply", "metadata", "balances"}, Reserved: 5}, false},
		{"remove", Layout{Version: 2, Fields: []string{"metadata", "supply"}, Reserved: 6}, false},
		{"rename", Layout{Version: 2, Fields: []string{"metadata", "supply", "ledger"}, Reserved: 5}, false},
		{"downgrade", Layout{Version: 0, Fields: []string{"metadata"}, Reserved: 7}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckCompatible(current, tc.next)
			if tc.ok && err != nil {
				t.Fatalf("expected compatible, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatalf("expected incompatibility")
			}
		})
	}
}

func TestCheckCompatibleRejectsDuplicateFields(t *testing.T) {
	next := Layout{Version: 2, Fields: []string{"metadata", "supply", "balances", "supply"}, Reserved: 4}
	if err := CheckCompatible(baseLayout(), next); !errors.Is(err, ErrInvalidLayout) {
		t.Fatalf("expected invalid layout, got %v", err)
	}
}

type stubLogic struct {
	id     string
	layout Layout
}

func (s stubLogic) ID() string     { return s.id }
func (s stubLogic) Layout() Layout { return s.layout }

func TestRegistry(t *testing.T) {
	reg := NewRegistry[stubLogic]()
	if err := reg.Register(stubLogic{id: "v1", layout: baseLayout()}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register(stubLogic{id: "v1", layout: baseLayout()}); !errors.Is(err, ErrDuplicateLogic) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if _, err := reg.Lookup("missing"); !errors.Is(err, ErrUnknownLogic) {
		t.Fatalf("expected unknown logic, got %v", err)
	}
	impl, err := reg.Lookup(" v1 ")
	if err != nil || impl.ID() != "v1" {
		t.Fatalf("lookup: %v", err)
	}
	if ids := reg.IDs(); len(ids) != 1 || ids[0] != "v1" {
		t.Fatalf("unexpected ids %v", ids)
	}
}

func TestLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v2.yaml")
	body := "logic: tax-token/v2\nversion: 2\nreserved: 4\nfields:\n  - metadata\n  - supply\n  - balances\n  - vesting\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	manifest, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	if manifest.Logic != "tax-token/v2" || manifest.Version != 2 || len(manifest.Fields) != 4 {
		t.Fatalf("unexpected manifest %+v", manifest)
	}
	if err := CheckCompatible(baseLayout(), manifest.Layout); err != nil {
		t.Fatalf("manifest should extend base layout: %v", err)
	}
}

func TestParseManifestRejectsUnknownKeys(t *testing.T) {
	if _, err := ParseManifest([]byte("logic: x\nversion: 1\nfields: [a]\nextra: true\n")); err == nil {
		t.Fatalf("expected unknown key to be rejected")
	}
	if _, err := ParseManifest([]byte("version: 1\nfields: [a]\n")); !errors.Is(err, ErrInvalidLayout) {
		t.Fatalf("expected missing logic error, got %v", err)
	}
}
