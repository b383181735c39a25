package netutil

import (
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNormalizeIP(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{name: "ipv4 with port", input: "192.0.2.4:8080", expected: "192.0.2.4", ok: true},
		{name: "ipv6 with port", input: "[2001:db8::1]:443", expected: "2001:db8::1", ok: true},
		{name: "plain ipv4", input: " 203.0.113.9 ", expected: "203.0.113.9", ok: true},
		{name: "plain ipv6", input: "2001:db8::5", expected: "2001:db8::5", ok: true},
		{name: "zone dropped", input: "fe80::1%eth0", expected: "fe80::1", ok: true},
		{name: "garbage", input: "not-an-ip", expected: "not-an-ip", ok: false},
		{name: "empty", input: "", expected: "", ok: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := NormalizeIP(tc.input)
			if ok != tc.ok {
				t.Fatalf("expected ok=%v, got %v", tc.ok, ok)
			}
			if got != tc.expected {
				t.Fatalf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "198.51.100.7:5555"
	r.Header.Set("X-Forwarded-For", "203.0.113.1, 10.0.0.1")

	if got := ClientIP(r, false); got != "198.51.100.7" {
		t.Fatalf("untrusted proxy: expected remote addr, got %q", got)
	}
	if got := ClientIP(r, true); got != "203.0.113.1" {
		t.Fatalf("trusted proxy: expected first forwarded addr, got %q", got)
	}

	r.Header.Del("X-Forwarded-For")
	r.Header.Set("X-Real-IP", "203.0.113.2")
	if got := ClientIP(r, true); got != "203.0.113.2" {
		t.Fatalf("expected X-Real-IP, got %q", got)
	}
}

func TestTruncateDescriptor(t *testing.T) {
	long := strings.Repeat("é", MaxDescriptorLength+10)
	got := TruncateDescriptor(long)
	if n := utf8.RuneCountInString(got); n != MaxDescriptorLength {
		t.Fatalf("expected %d runes, got %d", MaxDescriptorLength, n)
	}
	if !utf8.ValidString(got) {
		t.Fatal("truncation split a rune")
	}
	if TruncateDescriptor("short") != "short" {
		t.Fatal("short descriptor changed")
	}
}
