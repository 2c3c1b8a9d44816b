package resolve

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"edgelink/internal/pkg/geoip"
	"edgelink/internal/pkg/parser"
)

// RequestContext is everything the engine needs to know about one inbound
// request: device class, geography, referrer host, the current instant and the
// visitor fingerprint used for A/B assignment. It carries no references back
// to the http.Request, so it stays valid after the response is committed.
type RequestContext struct {
	IPAddress    string
	UserAgent    string
	DeviceType   string
	OS           string
	Browser      string
	CountryCode  string
	ReferrerHost string
	Referrer     string
	Fingerprint  string
	Now          time.Time
}

// Extractor builds a RequestContext from request headers. Country comes from
// the edge proxy's geo header when present, otherwise from the GeoIP resolver.
type Extractor struct {
	geo           geoip.Resolver
	countryHeader string
	secret        []byte
}

func NewExtractor(geo geoip.Resolver, countryHeader, fingerprintSecret string) *Extractor {
	if countryHeader == "" {
		countryHeader = "CF-IPCountry"
	}
	return &Extractor{
		geo:           geo,
		countryHeader: countryHeader,
		secret:        []byte(fingerprintSecret),
	}
}

func (e *Extractor) FromRequest(r *http.Request) *RequestContext {
	ip := clientIP(r)
	ua := r.UserAgent()

	country := strings.ToUpper(r.Header.Get(e.countryHeader))
	if country == "" || country == "XX" {
		country, _ = e.geo.Lookup(ip)
	}

	referrer := r.Referer()
	os, browser := parser.ParseUserAgent(ua)

	return &RequestContext{
		IPAddress:    ip,
		UserAgent:    ua,
		DeviceType:   parser.ParseDeviceType(ua),
		OS:           os,
		Browser:      browser,
		CountryCode:  country,
		ReferrerHost: referrerHost(referrer),
		Referrer:     referrer,
		Fingerprint:  Fingerprint(e.secret, ip, ua),
		Now:          time.Now(),
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func referrerHost(referrer string) string {
	if referrer == "" {
		return ""
	}
	u, err := url.Parse(referrer)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
