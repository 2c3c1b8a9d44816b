package geoip

// Resolver maps a client IP to an ISO country code. Deployments behind an edge
// proxy usually get the country from a trusted header instead and only fall
// back to the resolver for direct traffic.
type Resolver interface {
	Lookup(ip string) (string, error)
}

// NoopResolver is used when no GeoIP database is configured. It reports no
// country, which makes geographic rules fall through to the next rule kind.
type NoopResolver struct{}

func NewNoopResolver() *NoopResolver {
	return &NoopResolver{}
}

func (r *NoopResolver) Lookup(ip string) (string, error) {
	return "", nil
}

// StaticResolver returns a fixed country for every lookup. Useful in tests and
// single-region deployments.
type StaticResolver struct {
	Country string
}

func (r *StaticResolver) Lookup(ip string) (string, error) {
	return r.Country, nil
}
