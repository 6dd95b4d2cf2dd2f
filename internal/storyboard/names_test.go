package storyboard

import "testing"

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"intro.txt":        "intro.txt",
		"a b.txt":          "a_b.txt",
		"../../etc/passwd": "passwd",
		"..":               "document",
		"":                 "document",
		"notes\\final.md":  "final.md",
	}
	for in, want := range cases {
		if got := SanitizeName(in); got != want {
			t.Fatalf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBaseName(t *testing.T) {
	cases := map[string]string{
		"intro.txt":  "intro",
		"intro":      "intro",
		"a.b.txt":    "a.b",
		".gitignore": "gitignore",
	}
	for in, want := range cases {
		if got := BaseName(in); got != want {
			t.Fatalf("BaseName(%q) = %q, want %q", in, got, want)
		}
	}
}
