package redirect

import (
	"testing"

	"github.com/always-cache/always-fetch/pkg/fetcherr"
	"github.com/always-cache/always-fetch/pkg/locator"
)

func TestResolve(t *testing.T) {
	from := locator.MustParse("http://example.com/dir/page").(locator.HTTP)
	withPort := locator.MustParse("https://example.com:8443/a").(locator.HTTP)

	tests := []struct {
		name     string
		from     locator.HTTP
		location string
		want     string
	}{
		{"absolutePath", from, "/x", "http://example.com/x"},
		{"relative", from, "x", "http://example.com/x"},
		{"absolute", from, "https://other.org/y", "https://other.org/y"},
		{"absolutePathKeepsPort", withPort, "/b", "https://example.com:8443/b"},
		{"relativeKeepsPort", withPort, "c?d=1", "https://example.com:8443/c?d=1"},
		{"queryLooksLikeScheme", from, "go?to=http://x", "http://example.com/go?to=http://x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.from, tt.location); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.location, got, tt.want)
			}
		})
	}
}

func TestIsRedirect(t *testing.T) {
	tests := []struct {
		status   int
		location string
		want     bool
	}{
		{301, "/x", true},
		{302, "/x", true},
		{399, "/x", true},
		{304, "", false},
		{200, "/x", false},
		{400, "/x", false},
	}
	for _, tt := range tests {
		if got := IsRedirect(tt.status, tt.location); got != tt.want {
			t.Errorf("IsRedirect(%d, %q) = %v", tt.status, tt.location, got)
		}
	}
}

func TestBudget(t *testing.T) {
	b := NewBudget(0)
	for i := range DefaultMaxHops {
		if err := b.Spend(); err != nil {
			t.Fatalf("hop %d: %v", i+1, err)
		}
	}
	if b.Used() != DefaultMaxHops {
		t.Fatalf("Used() = %d", b.Used())
	}
	if err := b.Spend(); !fetcherr.Is(err, fetcherr.TooManyRedirects) {
		t.Fatalf("sixth hop: err = %v, want TooManyRedirects", err)
	}
	if b.Used() != DefaultMaxHops {
		t.Fatal("failed spend was counted")
	}
}

func TestNext(t *testing.T) {
	from := locator.MustParse("http://example.com/").(locator.HTTP)

	next, err := Next(from, "https://example.com:444/z")
	if err != nil {
		t.Fatal(err)
	}
	if next != (locator.HTTP{Secure: true, Host: "example.com", Port: 444, Path: "/z"}) {
		t.Fatalf("Next = %#v", next)
	}

	for _, location := range []string{"file:///etc/passwd", "ftp://example.com/", "http://:80/"} {
		if _, err := Next(from, location); !fetcherr.Is(err, fetcherr.ProtocolError) {
			t.Errorf("Next(%q): err = %v, want ProtocolError", location, err)
		}
	}
}
