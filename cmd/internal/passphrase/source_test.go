package passphrase

import "testing"

func fakeSource(env map[string]string, terminal bool, typed string) *Source {
	s := NewSource("TAXLEDGER_KEY_PASS", "")
	s.lookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	s.isTerminal = func() bool { return terminal }
	s.read = func() ([]byte, error) { return []byte(typed), nil }
	return s
}

func TestSourcePrefersEnvironment(t *testing.T) {
	s := fakeSource(map[string]string{"TAXLEDGER_KEY_PASS": "hunter2"}, true, "typed")
	got, err := s.Get()
	if err != nil || got != "hunter2" {
		t.Fatalf("unexpected passphrase %q err=%v", got, err)
	}
}

func TestSourceRejectsEmptyValues(t *testing.T) {
	if _, err := fakeSource(map[string]string{"TAXLEDGER_KEY_PASS": "  "}, true, "").Get(); err == nil {
		t.Fatalf("expected empty env value to be rejected")
	}
	if _, err := fakeSource(nil, true, " ").Get(); err == nil {
		t.Fatalf("expected empty typed value to be rejected")
	}
}

func TestSourceRequiresTerminalWithoutEnv(t *testing.T) {
	if _, err := fakeSource(nil, false, "").Get(); err == nil {
		t.Fatalf("expected error without terminal")
	}
	got, err := fakeSource(nil, true, "typed").Get()
	if err != nil || got != "typed" {
		t.Fatalf("unexpected prompt result %q err=%v", got, err)
	}
}
