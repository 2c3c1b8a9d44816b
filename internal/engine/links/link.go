package links

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

const (
	StatusActive   = "active"
	StatusPaused   = "paused"
	StatusArchived = "archived"
)

const (
	ABStatusActive    = "active"
	ABStatusPaused    = "paused"
	ABStatusCompleted = "completed"
)

// GeoDefaultKey is the reserved country key for the geo fallback destination.
const GeoDefaultKey = "default"

type Link struct {
	ID             string        `json:"id"`
	Slug           string        `json:"slug"`
	DestinationURL string        `json:"destination_url"`
	Title          string        `json:"title"`
	CreatedBy      string        `json:"created_by"`
	RedirectType   string        `json:"redirect_type"` // temporary (302), permanent (301)
	Rules          *RoutingRules `json:"rules,omitempty"`
	Status         string        `json:"status"`
	ExpiresAt      *int64        `json:"expires_at,omitempty"`
	MaxClicks      *int64        `json:"max_clicks,omitempty"`
	PasswordHash   string        `json:"password_hash,omitempty"`
	ClickCount     int64         `json:"click_count"`
	LastClickAt    *int64        `json:"last_click_at,omitempty"`
	CreatedAt      int64         `json:"created_at"`
	UpdatedAt      int64         `json:"updated_at"`
}

// RoutingRules holds every configured rule set for a link. A link has at most
// one rule set of each kind; an A/B test being a single field enforces the
// one-active-test-per-slug invariant structurally.
type RoutingRules struct {
	Device   map[string]string `json:"device,omitempty"`   // {"mobile": "...", "tablet": "...", "desktop": "..."}
	Geo      map[string]string `json:"geo,omitempty"`      // {"US": "...", "default": "..."}
	Referrer []ReferrerRule    `json:"referrer,omitempty"` // ordered, first substring match wins
	Time     []TimeRule        `json:"time,omitempty"`     // ordered, first window match wins
	ABTest   *ABTest           `json:"ab_test,omitempty"`
}

// ReferrerRule routes requests whose referrer host contains Match. Rules are
// kept as an ordered list so ties between overlapping patterns (twitter.com vs
// mobile.twitter.com) are broken by configuration order, not map iteration.
type ReferrerRule struct {
	Match       string `json:"match"`
	Destination string `json:"destination"`
}

// TimeRule is a [StartHour, EndHour) window in the rule's own timezone.
// StartHour > EndHour means the window wraps past midnight. Days uses ISO
// weekday numbering, 1=Monday..7=Sunday; empty means every day.
type TimeRule struct {
	StartHour   int    `json:"start_hour"`
	EndHour     int    `json:"end_hour"`
	Days        []int  `json:"days,omitempty"`
	Timezone    string `json:"timezone"`
	Destination string `json:"destination"`
}

// ABTest splits traffic between two destinations. Assignment is derived from
// the visitor fingerprint, so it needs no per-visitor state.
type ABTest struct {
	VariantA string `json:"variant_a"`
	VariantB string `json:"variant_b"`
	Split    int    `json:"split"` // percent of traffic sent to variant A
	Status   string `json:"status"`
}

func (t *ABTest) Active() bool {
	return t != nil && t.Status == ABStatusActive
}

// Value implements driver.Valuer so rules persist as a single JSON column.
func (r RoutingRules) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan implements sql.Scanner.
func (r *RoutingRules) Scan(value interface{}) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, &r)
}
