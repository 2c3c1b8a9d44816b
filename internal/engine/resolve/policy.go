package resolve

import (
	"golang.org/x/crypto/bcrypt"

	"edgelink/internal/engine/links"
)

// BlockReason distinguishes the variants of a refused redirect so the HTTP
// layer can decide between prompting for a password and rejecting outright.
type BlockReason string

const (
	ReasonExpired          BlockReason = "expired"
	ReasonClickLimit       BlockReason = "click_limit_reached"
	ReasonPasswordRequired BlockReason = "password_required"
	ReasonPasswordInvalid  BlockReason = "password_invalid"
)

// Decision is the policy gate's verdict. A blocked decision is a well-formed
// outcome, not an error: resolution must not run and the click counter must
// not move.
type Decision struct {
	Allowed bool
	Reason  BlockReason
}

var allowed = Decision{Allowed: true}

func blocked(reason BlockReason) Decision {
	return Decision{Reason: reason}
}

// CheckPolicy runs the link's policy checks in fixed order; the first
// violation wins. Expiration beats the click ceiling beats the password gate,
// so an expired link reports expired even when a password is also configured.
func CheckPolicy(link *links.Link, ctx *RequestContext, suppliedPassword string) Decision {
	if link.ExpiresAt != nil && *link.ExpiresAt < ctx.Now.Unix() {
		return blocked(ReasonExpired)
	}

	if link.MaxClicks != nil && link.ClickCount >= *link.MaxClicks {
		return blocked(ReasonClickLimit)
	}

	if link.PasswordHash != "" {
		if suppliedPassword == "" {
			return blocked(ReasonPasswordRequired)
		}
		// bcrypt comparison is constant-time for equal-cost hashes.
		if bcrypt.CompareHashAndPassword([]byte(link.PasswordHash), []byte(suppliedPassword)) != nil {
			return blocked(ReasonPasswordInvalid)
		}
	}

	return allowed
}
