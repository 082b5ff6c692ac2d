package knowledge

import (
	"net/url"
	"regexp"
	"strings"

	"sciencetopia/backend/internal/graphstore"
	"sciencetopia/backend/pkg/errors"
)

var relationshipTypePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]{0,63}$`)

// reservedTypes are structural edges that contributors may not create
var reservedTypes = map[string]bool{
	"CREATED":             true,
	"HAS_RESOURCE":        true,
	"MEMBER_OF":           true,
	"APPLIED_TO":          true,
	"FAVORITED":           true,
	"FINISHED_LEARNING":   true,
	"HAS_PREREQUISITE":    true,
	"HAS_MAIN_CURRICULUM": true,
	"HAS_ADVANCED_TOPIC":  true,
	"HAS_LOG":             true,
}

func requireNonEmpty(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.NewValidation(field, "must not be empty")
	}
	return nil
}

// ValidateLabel accepts only the content labels
func ValidateLabel(label string) error {
	for _, l := range graphstore.ContentLabels {
		if l == label {
			return nil
		}
	}
	return errors.NewValidation("label", "must be one of "+strings.Join(graphstore.ContentLabels, ", "))
}

// ValidateRelationshipType accepts upper snake case types that are not
// reserved for system edges
func ValidateRelationshipType(relType string) error {
	if !relationshipTypePattern.MatchString(relType) {
		return errors.NewValidation("type", "must match "+relationshipTypePattern.String())
	}
	if reservedTypes[relType] {
		return errors.NewValidation("type", relType+" is reserved")
	}
	return nil
}

// ValidateLink accepts absolute http and https URLs
func ValidateLink(link string) error {
	if err := requireNonEmpty("link", link); err != nil {
		return err
	}
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.NewValidation("link", "must be an absolute http(s) URL")
	}
	return nil
}
