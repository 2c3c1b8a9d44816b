package links

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

func ValidateLink(link *Link) error {
	if err := validateDestination(link.DestinationURL); err != nil {
		return err
	}

	if link.RedirectType != "" && link.RedirectType != "temporary" && link.RedirectType != "permanent" {
		return errors.New("redirect_type must be 'temporary' or 'permanent'")
	}

	if link.MaxClicks != nil && *link.MaxClicks < 1 {
		return errors.New("max_clicks must be at least 1")
	}

	if link.Rules != nil {
		if err := ValidateRules(link.Rules); err != nil {
			return err
		}
	}

	return nil
}

func ValidateRules(rules *RoutingRules) error {
	for device, dest := range rules.Device {
		if device != "mobile" && device != "tablet" && device != "desktop" {
			return fmt.Errorf("unknown device class %q", device)
		}
		if err := validateDestination(dest); err != nil {
			return err
		}
	}

	for country, dest := range rules.Geo {
		if country != GeoDefaultKey && len(country) != 2 {
			return fmt.Errorf("invalid country code %q", country)
		}
		if err := validateDestination(dest); err != nil {
			return err
		}
	}

	for _, rr := range rules.Referrer {
		if rr.Match == "" {
			return errors.New("referrer rule match must not be empty")
		}
		if err := validateDestination(rr.Destination); err != nil {
			return err
		}
	}

	for i, tr := range rules.Time {
		if err := ValidateTimeRule(&tr); err != nil {
			return fmt.Errorf("time rule %d: %w", i, err)
		}
	}

	if rules.ABTest != nil {
		if err := ValidateABTest(rules.ABTest); err != nil {
			return err
		}
	}

	return nil
}

func ValidateTimeRule(tr *TimeRule) error {
	if tr.StartHour < 0 || tr.StartHour > 23 || tr.EndHour < 0 || tr.EndHour > 24 {
		return errors.New("hours must be within 0-23 (end may be 24)")
	}
	for _, d := range tr.Days {
		if d < 1 || d > 7 {
			return errors.New("days must use ISO weekdays 1 (Monday) to 7 (Sunday)")
		}
	}
	if _, err := time.LoadLocation(tr.Timezone); err != nil {
		return fmt.Errorf("unknown timezone %q", tr.Timezone)
	}
	return validateDestination(tr.Destination)
}

func ValidateABTest(ab *ABTest) error {
	if ab.Split < 0 || ab.Split > 100 {
		return errors.New("split must be between 0 and 100")
	}
	if ab.Status != ABStatusActive && ab.Status != ABStatusPaused && ab.Status != ABStatusCompleted {
		return errors.New("ab test status must be active, paused or completed")
	}
	if err := validateDestination(ab.VariantA); err != nil {
		return err
	}
	return validateDestination(ab.VariantB)
}

func validateDestination(dest string) error {
	if dest == "" {
		return errors.New("destination url is required")
	}

	u, err := url.Parse(dest)
	if err != nil {
		return errors.New("invalid destination url format")
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("destination url must start with http:// or https://")
	}

	return nil
}
