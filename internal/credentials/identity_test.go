package credentials

import (
	"strings"
	"testing"

	"krosswordle/internal/validation"
)

func TestGenerateDisplayName(t *testing.T) {
	for i := 0; i < 100; i++ {
		name, err := GenerateDisplayName()
		if err != nil {
			t.Fatalf("GenerateDisplayName() error = %v", err)
		}
		parts := strings.Split(name, "-")
		if len(parts) != 2 {
			t.Fatalf("name %q not in adjective-noun form", name)
		}
		if err := validation.ValidateDisplayName(name); err != nil {
			t.Errorf("generated name %q fails validation: %v", name, err)
		}
	}
}

func TestGenerateDisplayNameWithSuffix(t *testing.T) {
	for i := 0; i < 50; i++ {
		name, err := GenerateDisplayNameWithSuffix()
		if err != nil {
			t.Fatalf("GenerateDisplayNameWithSuffix() error = %v", err)
		}
		if parts := strings.Split(name, "-"); len(parts) != 3 {
			t.Fatalf("name %q not in adjective-noun-number form", name)
		}
		if err := validation.ValidateDisplayName(name); err != nil {
			t.Errorf("generated name %q fails validation: %v", name, err)
		}
	}
}

func TestAvatarURL(t *testing.T) {
	a := AvatarURL("Player@Example.com ")
	b := AvatarURL("player@example.com")
	if a != b {
		t.Errorf("AvatarURL should normalise case and whitespace: %q != %q", a, b)
	}
	if !strings.HasPrefix(a, "https://www.gravatar.com/avatar/") || !strings.HasSuffix(a, "?d=identicon") {
		t.Errorf("unexpected avatar URL %q", a)
	}
	if AvatarURL("other@example.com") == b {
		t.Error("different emails should give different avatars")
	}
}
