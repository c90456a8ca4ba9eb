package entity

import (
	"fmt"
	"regexp"
	"strings"
)

var slugStripPattern = regexp.MustCompile(`[^a-z0-9]+`)

// slugify reduces a title to its URL slug form: lowercase alphanumerics with
// single dashes between words.
func slugify(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = slugStripPattern.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	return slug
}

// resolveSlugCollision picks the final slug and collision id given the
// collision ids already taken for this title slug under the owner. The first
// route keeps the bare slug; later ones get a numeric suffix.
func resolveSlugCollision(titleSlug string, takenCollisionIDs []int64) (string, int64) {
	if len(takenCollisionIDs) == 0 {
		return titleSlug, 0
	}

	max := int64(0)
	for _, id := range takenCollisionIDs {
		if id > max {
			max = id
		}
	}

	collisionID := max + 1
	return fmt.Sprintf("%s-%d", titleSlug, collisionID), collisionID
}
