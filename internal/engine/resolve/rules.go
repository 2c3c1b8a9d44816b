package resolve

import (
	"fmt"
	"strings"
	"time"

	"edgelink/internal/engine/links"
)

// MatchKind names the rule set that produced a destination.
type MatchKind string

const (
	MatchABTest   MatchKind = "abtest"
	MatchTime     MatchKind = "time"
	MatchDevice   MatchKind = "device"
	MatchGeo      MatchKind = "geo"
	MatchReferrer MatchKind = "referrer"
	MatchDefault  MatchKind = "default"
)

// Outcome is the result of one resolution: the chosen destination, which rule
// kind picked it, and any warnings about rules that could not be evaluated.
// Warnings ride along to the outcome recorder; they never fail the redirect.
type Outcome struct {
	Destination string
	MatchedRule MatchKind
	Warnings    []string
}

// ruleFunc evaluates one rule kind against the request. ok=false means fall
// through to the next kind.
type ruleFunc func(*links.RoutingRules, *RequestContext) (dest string, ok bool, warnings []string)

// ruleChain is the fixed priority order. An active A/B test short-circuits
// everything else: splitting its traffic further by device or geography would
// fragment the experiment's measurements.
var ruleChain = []struct {
	kind MatchKind
	eval ruleFunc
}{
	{MatchABTest, evalABTest},
	{MatchTime, evalTime},
	{MatchDevice, evalDevice},
	{MatchGeo, evalGeo},
	{MatchReferrer, evalReferrer},
}

// Resolve picks exactly one destination for the request. Callers must run the
// policy gate first; Resolve assumes the link is allowed to redirect.
func Resolve(link *links.Link, ctx *RequestContext) *Outcome {
	out := &Outcome{}

	if link.Rules != nil {
		for _, step := range ruleChain {
			dest, ok, warnings := step.eval(link.Rules, ctx)
			out.Warnings = append(out.Warnings, warnings...)
			if ok {
				out.Destination = dest
				out.MatchedRule = step.kind
				return out
			}
		}
	}

	out.Destination = link.DestinationURL
	out.MatchedRule = MatchDefault
	return out
}

func evalABTest(r *links.RoutingRules, ctx *RequestContext) (string, bool, []string) {
	if !r.ABTest.Active() {
		return "", false, nil
	}
	if Bucket(ctx.Fingerprint) < r.ABTest.Split {
		return r.ABTest.VariantA, true, nil
	}
	return r.ABTest.VariantB, true, nil
}

func evalTime(r *links.RoutingRules, ctx *RequestContext) (string, bool, []string) {
	var warnings []string
	for i := range r.Time {
		tr := &r.Time[i]
		matched, err := matchTimeRule(tr, ctx.Now)
		if err != nil {
			// Unevaluable rules are non-matching, never fatal.
			warnings = append(warnings, fmt.Sprintf("time rule %d: %v", i, err))
			continue
		}
		if matched {
			return tr.Destination, true, warnings
		}
	}
	return "", false, warnings
}

func matchTimeRule(tr *links.TimeRule, now time.Time) (bool, error) {
	if tr.StartHour < 0 || tr.StartHour > 23 || tr.EndHour < 0 || tr.EndHour > 24 {
		return false, fmt.Errorf("hour range %d-%d out of bounds", tr.StartHour, tr.EndHour)
	}

	loc, err := time.LoadLocation(tr.Timezone)
	if err != nil {
		return false, fmt.Errorf("bad timezone %q", tr.Timezone)
	}

	local := now.In(loc)

	if len(tr.Days) > 0 {
		iso := int(local.Weekday())
		if iso == 0 {
			iso = 7 // time.Sunday is 0, ISO Sunday is 7
		}
		found := false
		for _, d := range tr.Days {
			if d == iso {
				found = true
				break
			}
		}
		if !found {
			return false, nil
		}
	}

	h := local.Hour()
	switch {
	case tr.StartHour == tr.EndHour:
		return false, nil
	case tr.StartHour < tr.EndHour:
		return h >= tr.StartHour && h < tr.EndHour, nil
	default:
		// Window wraps past midnight, e.g. 22-2 covers 22:00-23:59 and 00:00-01:59.
		return h >= tr.StartHour || h < tr.EndHour, nil
	}
}

func evalDevice(r *links.RoutingRules, ctx *RequestContext) (string, bool, []string) {
	if len(r.Device) == 0 || ctx.DeviceType == "" {
		return "", false, nil
	}
	if url, ok := r.Device[ctx.DeviceType]; ok {
		return url, true, nil
	}
	return "", false, nil
}

func evalGeo(r *links.RoutingRules, ctx *RequestContext) (string, bool, []string) {
	if len(r.Geo) == 0 {
		return "", false, nil
	}
	if ctx.CountryCode != "" {
		if url, ok := r.Geo[ctx.CountryCode]; ok {
			return url, true, nil
		}
	}
	if url, ok := r.Geo[links.GeoDefaultKey]; ok {
		return url, true, nil
	}
	return "", false, nil
}

func evalReferrer(r *links.RoutingRules, ctx *RequestContext) (string, bool, []string) {
	if len(r.Referrer) == 0 || ctx.ReferrerHost == "" {
		return "", false, nil
	}
	// First match in configuration order; a rule keyed "twitter.com" matches
	// host "mobile.twitter.com".
	for _, rr := range r.Referrer {
		if strings.Contains(ctx.ReferrerHost, strings.ToLower(rr.Match)) {
			return rr.Destination, true, nil
		}
	}
	return "", false, nil
}
