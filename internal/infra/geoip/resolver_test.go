package geoip

import (
	"errors"
	"testing"
)

func TestNewResolverEmptyPath(t *testing.T) {
	r, err := NewResolver("  ")
	if err != nil || r != nil {
		t.Fatalf("NewResolver(\"\") = %v, %v, want nil, nil", r, err)
	}
}

func TestCountryCodeLocalAddresses(t *testing.T) {
	var r *Resolver
	for _, ip := range []string{"127.0.0.1", "10.1.2.3", "192.168.0.10", "::1", "fe80::1"} {
		code, err := r.CountryCode(ip)
		if err != nil || code != "" {
			t.Fatalf("CountryCode(%q) = %q, %v, want empty", ip, code, err)
		}
	}
}

func TestCountryCodeErrors(t *testing.T) {
	r := &Resolver{}
	if _, err := r.CountryCode("not-an-ip"); err == nil {
		t.Fatal("expected error for invalid ip")
	}
	if _, err := r.CountryCode("8.8.8.8"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
}
