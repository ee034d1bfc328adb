package reaction

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/alphabot-ai/newsroom/internal/model"
	"github.com/alphabot-ai/newsroom/internal/store"
)

var ErrInvalidStatus = errors.New("invalid status")

var slugPattern = regexp.MustCompile(`^[a-z0-9_-]{1,32}$`)

const maxStatusNameLen = 64

// ValidateStatus checks a catalog entry before it is stored.
func ValidateStatus(st model.Status) error {
	if !slugPattern.MatchString(st.Slug) {
		return fmt.Errorf("%w: slug must be 1-32 of a-z, 0-9, '_' or '-'", ErrInvalidStatus)
	}
	n := utf8.RuneCountInString(strings.TrimSpace(st.Name))
	if n == 0 || n > maxStatusNameLen {
		return fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidStatus, maxStatusNameLen)
	}
	return nil
}

// SeedStatuses fills an empty catalog with slugs, each named after
// itself. A catalog that already has entries is left alone.
func SeedStatuses(ctx context.Context, st store.StatusStore, slugs []string) (int, error) {
	existing, err := st.ListStatuses(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}
	added := 0
	for _, slug := range slugs {
		status := model.Status{Slug: strings.ToLower(strings.TrimSpace(slug))}
		status.Name = status.Slug
		if err := ValidateStatus(status); err != nil {
			return added, err
		}
		if _, err := st.CreateStatus(ctx, &status); err != nil {
			if errors.Is(err, store.ErrDuplicateSlug) {
				continue
			}
			return added, err
		}
		added++
	}
	return added, nil
}
