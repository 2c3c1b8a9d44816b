package links

import (
	"errors"
	"math/rand"
	"strings"
)

const (
	slugChars  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	slugLength = 7
)

type SlugAvailabilityChecker interface {
	ExistsBySlug(slug string) (bool, error)
}

// GenerateSlug returns the custom slug if valid and free, otherwise a random
// one, retrying on collision and growing by one character as a last resort.
func GenerateSlug(customSlug string, checker SlugAvailabilityChecker) (string, error) {
	if customSlug != "" {
		if !isValidSlug(customSlug) {
			return "", errors.New("invalid slug format")
		}

		exists, err := checker.ExistsBySlug(customSlug)
		if err != nil {
			return "", err
		}
		if exists {
			return "", errors.New("slug already taken")
		}

		return customSlug, nil
	}

	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		slug := randomSlug(slugLength)

		exists, err := checker.ExistsBySlug(slug)
		if err != nil {
			return "", err
		}
		if !exists {
			return slug, nil
		}
	}

	slug := randomSlug(slugLength + 1)
	exists, err := checker.ExistsBySlug(slug)
	if err != nil {
		return "", err
	}
	if exists {
		return "", errors.New("failed to generate unique slug")
	}

	return slug, nil
}

func randomSlug(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = slugChars[rand.Intn(len(slugChars))]
	}
	return string(b)
}

func isValidSlug(slug string) bool {
	if len(slug) < 3 || len(slug) > 20 {
		return false
	}

	for _, c := range slug {
		if !strings.ContainsRune(slugChars, c) && c != '-' {
			return false
		}
	}

	// Reserved path segments
	reserved := []string{"api", "admin", "dashboard", "health", "metrics", "favicon"}
	for _, r := range reserved {
		if strings.EqualFold(slug, r) {
			return false
		}
	}

	return true
}
