package resolve

import (
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"edgelink/internal/engine/links"
)

func int64ptr(v int64) *int64 { return &v }

func policyCtx(now time.Time) *RequestContext {
	return &RequestContext{Now: now}
}

func TestCheckPolicy(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	tests := []struct {
		name       string
		link       *links.Link
		password   string
		wantAllow  bool
		wantReason BlockReason
	}{
		{
			name:      "No Policy Allows",
			link:      &links.Link{DestinationURL: "https://example.com"},
			wantAllow: true,
		},
		{
			name: "Future Expiry Allows",
			link: &links.Link{
				ExpiresAt: int64ptr(now.Add(time.Hour).Unix()),
			},
			wantAllow: true,
		},
		{
			name: "Past Expiry Blocks",
			link: &links.Link{
				ExpiresAt: int64ptr(now.Add(-time.Hour).Unix()),
			},
			wantReason: ReasonExpired,
		},
		{
			name: "Expiry Beats Password",
			link: &links.Link{
				ExpiresAt:    int64ptr(now.Add(-time.Hour).Unix()),
				PasswordHash: string(hash),
			},
			wantReason: ReasonExpired,
		},
		{
			name: "Click Limit Reached Blocks",
			link: &links.Link{
				MaxClicks:  int64ptr(100),
				ClickCount: 100,
			},
			wantReason: ReasonClickLimit,
		},
		{
			name: "Click Count Over Limit Blocks",
			link: &links.Link{
				MaxClicks:  int64ptr(100),
				ClickCount: 103,
			},
			wantReason: ReasonClickLimit,
		},
		{
			name: "Under Click Limit Allows",
			link: &links.Link{
				MaxClicks:  int64ptr(100),
				ClickCount: 99,
			},
			wantAllow: true,
		},
		{
			name: "Password Missing",
			link: &links.Link{
				PasswordHash: string(hash),
			},
			wantReason: ReasonPasswordRequired,
		},
		{
			name: "Password Wrong",
			link: &links.Link{
				PasswordHash: string(hash),
			},
			password:   "letmein",
			wantReason: ReasonPasswordInvalid,
		},
		{
			name: "Password Correct",
			link: &links.Link{
				PasswordHash: string(hash),
			},
			password:  "hunter2",
			wantAllow: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckPolicy(tt.link, policyCtx(now), tt.password)
			if got.Allowed != tt.wantAllow {
				t.Errorf("Allowed = %v, want %v", got.Allowed, tt.wantAllow)
			}
			if !tt.wantAllow && got.Reason != tt.wantReason {
				t.Errorf("Reason = %s, want %s", got.Reason, tt.wantReason)
			}
		})
	}
}
