// Package safepath normalizes relative document paths before they are used
// as storage keys and as the seed for index ids.
package safepath

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/starford/vaultvec/internal/apperr"
)

// MaxLength is the longest accepted path in bytes.
const MaxLength = 255

var (
	repeatedSepRe = regexp.MustCompile(`/{2,}`)
	leadingRe     = regexp.MustCompile(`^[/.]+`)
	unsafeCharRe  = regexp.MustCompile(`[\x00-\x1f\x7f<>:"|?*\\]`)
)

var blockedPrefixes = []string{"/", "~", "..", "."}

// Sanitize returns the normalized form of raw or an error wrapping
// apperr.ErrInvalidPath. The output is stable: Sanitize(Sanitize(p)) == Sanitize(p).
func Sanitize(raw string) (string, error) {
	p := strings.ReplaceAll(raw, "\x00", "")
	p = strings.ReplaceAll(p, "..", "")
	p = repeatedSepRe.ReplaceAllString(p, "/")
	p = leadingRe.ReplaceAllString(p, "")
	p = strings.TrimSuffix(p, "/")

	if len(p) > MaxLength {
		return "", fmt.Errorf("%w: longer than %d bytes", apperr.ErrInvalidPath, MaxLength)
	}
	if unsafeCharRe.MatchString(p) {
		return "", fmt.Errorf("%w: %q contains forbidden characters", apperr.ErrInvalidPath, raw)
	}

	p = trimBlocked(p)
	if p == "" {
		return "", fmt.Errorf("%w: %q is empty after normalization", apperr.ErrInvalidPath, raw)
	}
	return p, nil
}

func trimBlocked(p string) string {
	for {
		trimmed := false
		for _, prefix := range blockedPrefixes {
			if strings.HasPrefix(p, prefix) {
				p = strings.TrimPrefix(p, prefix)
				trimmed = true
			}
		}
		if !trimmed {
			return p
		}
	}
}
