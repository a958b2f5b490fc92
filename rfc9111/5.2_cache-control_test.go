package rfc9111

import (
	"testing"
	"time"
)

func TestMaxAge(t *testing.T) {
	cc := ParseCacheControl([]string{"max-age=60"})
	val, ok := cc.Get("max-age")
	if !ok {
		t.Fatal("Could not get directive")
	}
	if val != "60" {
		t.Fatalf("Value is %s", val)
	}
	if d, ok := cc.MaxAge(); !ok || d != time.Minute {
		t.Fatalf("MaxAge is %v, %v", d, ok)
	}
}

func TestReal(t *testing.T) {
	cc := ParseCacheControl([]string{"public, max-age=0, s-maxage=600"})
	if val, ok := cc.Get("public"); !ok || val != "" {
		t.Fatalf("val: '%s', ok: %v", val, ok)
	}
	if val, ok := cc.Get("max-age"); !ok || val != "0" {
		t.Fatalf("val: '%s', ok: %v", val, ok)
	}
	if val, ok := cc.Get("s-maxage"); !ok || val != "600" {
		t.Fatalf("val: '%s', ok: %v", val, ok)
	}
}

func TestWhitespaceAndCase(t *testing.T) {
	cc := ParseCacheControl([]string{"Public,MAX-AGE=\"30\" ,  No-Store"})
	if !cc.HasDirective("public") || !cc.NoStore() {
		t.Fatalf("directives: %v", cc.directives)
	}
	if d, ok := cc.MaxAge(); !ok || d != 30*time.Second {
		t.Fatalf("MaxAge is %v, %v", d, ok)
	}
}

func TestMultipleFields(t *testing.T) {
	cc := ParseCacheControl([]string{"max-age=10", "max-age=20, private"})
	if d, _ := cc.MaxAge(); d != 20*time.Second {
		t.Fatalf("MaxAge is %v, want last value", d)
	}
	if !cc.HasDirective("Private") {
		t.Fatal("private directive lost")
	}
}

func TestDeltaSeconds(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"0", 0, true},
		{"7200", 2 * time.Hour, true},
		{"99999999999999999999", maxDeltaSeconds * time.Second, true},
		{"-1", 0, false},
		{"1.5", 0, false},
		{"abc", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := deltaSeconds(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("deltaSeconds(%q) = %v, %v", tt.in, got, ok)
		}
	}
}
