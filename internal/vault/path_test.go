package vault

import "testing"

func TestNormalizePath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"notes/a.md", "notes/a.md"},
		{"notes\\a.md", "notes/a.md"},
		{"notes//a.md", "notes/a.md"},
		{"/notes/a.md/", "notes/a.md"},
		{"./notes/a.md", "notes/a.md"},
		{"notes/./a.md", "notes/a.md"},
		{"notes/sub/../a.md", "notes/a.md"},
		{"../a.md", "a.md"},
		{"../../../a.md", "a.md"},
		{"a/../../b.md", "b.md"},
		{"", ""},
		{"/", ""},
		{".", ""},
	}

	for _, tc := range cases {
		if got := NormalizePath(tc.in); got != tc.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParentAndBase(t *testing.T) {
	if p := parentPath("a/b/c.md"); p != "a/b" {
		t.Errorf("parentPath = %q, want a/b", p)
	}
	if p := parentPath("c.md"); p != "" {
		t.Errorf("parentPath of root file = %q, want empty", p)
	}
	if b := baseName("a/b/c.md"); b != "c.md" {
		t.Errorf("baseName = %q, want c.md", b)
	}
}
