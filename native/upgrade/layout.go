package upgrade

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidLayout      = errors.New("upgrade: invalid layout")
	ErrIncompatibleLayout = errors.New("upgrade: incompatible layout")
	ErrUnknownLogic       = errors.New("upgrade: logic not registered")
	ErrDuplicateLogic     = errors.New("upgrade: logic already registered")
)

// Layout is the ordered list of persisted state fields a logic version
// addresses, followed by a reserved region later versions may grow into.
type Layout struct {
	Version  uint32   `yaml:"version"`
	Fields   []string `yaml:"fields"`
	Reserved uint32   `yaml:"reserved"`
}

// Capacity is the total number of field slots, used or reserved.
func (l Layout) Capacity() int {
	return len(l.Fields) + int(l.Reserved)
}

// Validate checks the layout is well formed.
func (l Layout) Validate() error {
	if l.Version == 0 {
		return fmt.Errorf("%w: version must be positive", ErrInvalidLayout)
	}
	if len(l.Fields) == 0 {
		return fmt.Errorf("%w: at least one field required", ErrInvalidLayout)
	}
	seen := make(map[string]struct{}, len(l.Fields))
	for i, field := range l.Fields {
		name := strings.TrimSpace(field)
		if name == "" {
			return fmt.Errorf("%w: field %d is empty", ErrInvalidLayout, i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: duplicate field %q", ErrInvalidLayout, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// CheckCompatible verifies next only appends to current. Existing fields must
// keep their names and positions, appended fields must come out of the
// reserved region, and the total capacity may not change.
func CheckCompatible(current, next Layout) error {
	if err := current.Validate(); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	if next.Version < current.Version {
		return fmt.Errorf("%w: version %d precedes active version %d", ErrIncompatibleLayout, next.Version, current.Version)
	}
	if len(next.Fields) < len(current.Fields) {
		return fmt.Errorf("%w: %d fields removed", ErrIncompatibleLayout, len(current.Fields)-len(next.Fields))
	}
	for i, field := range current.Fields {
		if next.Fields[i] != field {
			return fmt.Errorf("%w: slot %d changed from %q to %q", ErrIncompatibleLayout, i, field, next.Fields[i])
		}
	}
	if next.Capacity() != current.Capacity() {
		return fmt.Errorf("%w: capacity %d differs from %d", ErrIncompatibleLayout, next.Capacity(), current.Capacity())
	}
	if next.Version == current.Version && len(next.Fields) != len(current.Fields) {
		return fmt.Errorf("%w: appended fields require a new version", ErrIncompatibleLayout)
	}
	return nil
}
