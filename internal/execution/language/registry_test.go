package language_test

import (
	"testing"

	"judgegate/internal/execution/language"
	pkgerrors "judgegate/pkg/errors"
)

func TestRegistryIDForIsCaseInsensitive(t *testing.T) {
	r := language.Default()
	cases := map[string]int{
		"python":      71,
		"Python":      71,
		" JAVASCRIPT": 63,
		"cpp":         54,
		"c":           50,
		"typescript":  74,
		"java":        62,
		"rust":        73,
	}
	for input, want := range cases {
		got, err := r.IDFor(input)
		if err != nil {
			t.Fatalf("%q: unexpected error %v", input, err)
		}
		if got != want {
			t.Fatalf("%q: expected %d, got %d", input, want, got)
		}
	}
}

func TestRegistryUnknownLanguage(t *testing.T) {
	_, err := language.Default().IDFor("brainfuck")
	if pkgerrors.GetCode(err) != pkgerrors.LanguageNotSupported {
		t.Fatalf("expected LanguageNotSupported, got %v", err)
	}
}

func TestRegistryAllowListNarrowerThanTable(t *testing.T) {
	r := language.Default()
	if !r.IsAllowed("Python") {
		t.Fatalf("python should be allowed")
	}
	if r.IsAllowed("rust") {
		t.Fatalf("rust is in the table but must not be allowed")
	}
	supported := r.Supported()
	want := []string{"c", "cpp", "java", "javascript", "python", "typescript"}
	if len(supported) != len(want) {
		t.Fatalf("unexpected supported list: %v", supported)
	}
	for i := range want {
		if supported[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, supported)
		}
	}
}

func TestRegistryNameReverseLookup(t *testing.T) {
	r := language.Default()
	if r.Name(71) != "python" || r.Name(9999) != "unknown" {
		t.Fatalf("unexpected reverse lookup")
	}
}
