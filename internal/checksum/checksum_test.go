package checksum

import "testing"

func TestETag(t *testing.T) {
	a := ETag([]byte("photo"))
	if a != ETag([]byte("photo")) {
		t.Error("etag not stable")
	}
	if a == ETag([]byte("other")) {
		t.Error("different content shares an etag")
	}
	if len(a) != 66 || a[0] != '"' || a[65] != '"' {
		t.Errorf("etag = %s, want quoted sha256 hex", a)
	}
}

func TestMatch(t *testing.T) {
	etag := ETag([]byte("photo"))
	tests := []struct {
		header string
		want   bool
	}{
		{etag, true},
		{"W/" + etag, true},
		{`"abc", ` + etag, true},
		{"*", true},
		{`"abc"`, false},
		{"", false},
	}
	for _, tt := range tests {
		if got := Match(tt.header, etag); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}
