package sources

import (
	"errors"
	"testing"
)

func TestRegistryCreateUnknown(t *testing.T) {
	_, err := Create(KindCEX, "doesnotexist", nil)
	if !errors.Is(err, ErrUnknownSource) {
		t.Errorf("Expected ErrUnknownSource, got %v", err)
	}
}

func TestRegistryRegisterAndCreate(t *testing.T) {
	called := false
	Register(Kind("test"), "dummy", func(config map[string]interface{}) (Source, error) {
		called = true
		return nil, nil
	})

	if _, err := Create(Kind("test"), "dummy", nil); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !called {
		t.Error("Factory was not invoked")
	}

	found := false
	for _, name := range List() {
		if name == "test.dummy" {
			found = true
		}
	}
	if !found {
		t.Error("Expected test.dummy in registry list")
	}
}

func TestRegistryKindMismatch(t *testing.T) {
	Register(Kind("test"), "kinded", func(config map[string]interface{}) (Source, error) {
		return nil, nil
	})

	// Same name under a different kind is a different source.
	if _, err := Create(KindCEX, "kinded", nil); !errors.Is(err, ErrUnknownSource) {
		t.Errorf("Expected ErrUnknownSource for wrong kind, got %v", err)
	}
}
