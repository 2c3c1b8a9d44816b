package resolve

import (
	"net/http/httptest"
	"testing"

	"edgelink/internal/pkg/geoip"
)

func TestExtractor_FromRequest(t *testing.T) {
	ext := NewExtractor(geoip.NewNoopResolver(), "CF-IPCountry", "test-secret")

	r := httptest.NewRequest("GET", "http://edgel.ink/abc123", nil)
	r.RemoteAddr = "203.0.113.7:51234"
	r.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148 Safari/604.1")
	r.Header.Set("CF-IPCountry", "us")
	r.Header.Set("Referer", "https://Mobile.Twitter.com/some/path")

	ctx := ext.FromRequest(r)

	if ctx.DeviceType != "mobile" {
		t.Errorf("DeviceType = %s, want mobile", ctx.DeviceType)
	}
	if ctx.CountryCode != "US" {
		t.Errorf("CountryCode = %s, want US", ctx.CountryCode)
	}
	if ctx.ReferrerHost != "mobile.twitter.com" {
		t.Errorf("ReferrerHost = %s, want mobile.twitter.com", ctx.ReferrerHost)
	}
	if ctx.IPAddress != "203.0.113.7" {
		t.Errorf("IPAddress = %s, want 203.0.113.7", ctx.IPAddress)
	}
	if ctx.Fingerprint == "" {
		t.Error("Fingerprint should not be empty")
	}
}

func TestExtractor_CountryFallsBackToResolver(t *testing.T) {
	ext := NewExtractor(&geoip.StaticResolver{Country: "DE"}, "CF-IPCountry", "test-secret")

	r := httptest.NewRequest("GET", "http://edgel.ink/abc123", nil)
	r.RemoteAddr = "203.0.113.7:51234"

	if ctx := ext.FromRequest(r); ctx.CountryCode != "DE" {
		t.Errorf("CountryCode = %s, want DE from resolver", ctx.CountryCode)
	}
}

func TestExtractor_XForwardedFor(t *testing.T) {
	ext := NewExtractor(geoip.NewNoopResolver(), "", "test-secret")

	r := httptest.NewRequest("GET", "http://edgel.ink/abc123", nil)
	r.RemoteAddr = "10.0.0.1:80"
	r.Header.Set("X-Forwarded-For", "198.51.100.9, 10.0.0.1")

	if ctx := ext.FromRequest(r); ctx.IPAddress != "198.51.100.9" {
		t.Errorf("IPAddress = %s, want first X-Forwarded-For entry", ctx.IPAddress)
	}
}

func TestFingerprint_StableAndKeyed(t *testing.T) {
	secret := []byte("s1")

	a := Fingerprint(secret, "203.0.113.7", "ua")
	b := Fingerprint(secret, "203.0.113.7", "ua")
	if a != b {
		t.Error("same inputs should produce the same fingerprint")
	}

	if Fingerprint(secret, "203.0.113.8", "ua") == a {
		t.Error("different IPs should produce different fingerprints")
	}
	if Fingerprint([]byte("s2"), "203.0.113.7", "ua") == a {
		t.Error("different secrets should produce different fingerprints")
	}
}

func TestBucket_Range(t *testing.T) {
	for i := 0; i < 1000; i++ {
		fp := Fingerprint([]byte("secret"), "ip", string(rune(i)))
		b := Bucket(fp)
		if b < 0 || b > 99 {
			t.Fatalf("bucket %d out of range", b)
		}
	}
}
