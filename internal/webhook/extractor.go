package webhook

import (
	"regexp"
	"strings"
)

// ExtractedFields holds the contact fields pulled from raw form data via
// best-effort label matching. Everything the matcher does not claim ends up
// in Extra and flows into the lead's detail record.
type ExtractedFields struct {
	Name    string
	Email   string
	Phone   string
	Message string
	Extra   map[string]string
}

// IsIncomplete returns true if the name or a phone number is missing. A
// missing email is not flagged here: lead creation rejects that outright.
func (e ExtractedFields) IsIncomplete() bool {
	return e.Name == "" || e.Phone == ""
}

// ExtractFields performs best-effort field extraction from a flat string map
// of form data. It uses label matching to identify common fields across any
// form; unmatched fields are preserved verbatim in Extra.
func ExtractFields(data map[string]string) ExtractedFields {
	result := ExtractedFields{Extra: map[string]string{}}

	for key, value := range data {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		k := strings.ToLower(strings.TrimSpace(key))

		switch {
		case matchesAny(k, namePatterns):
			result.Name = value
		case matchesAny(k, emailPatterns):
			if emailRegex.MatchString(value) {
				result.Email = value
			}
		case matchesAny(k, phonePatterns):
			result.Phone = value
		case matchesAny(k, messagePatterns):
			result.Message = value
		default:
			result.Extra[key] = value
		}
	}

	return result
}

// Field label patterns (Dutch + English)
var (
	namePatterns    = []string{"name", "naam", "full_name", "fullname", "contact_name", "contactnaam"}
	emailPatterns   = []string{"email", "e-mail", "e_mail", "emailaddress", "emailadres", "mail"}
	phonePatterns   = []string{"phone", "telefoon", "telefoonnummer", "tel", "mobile", "mobiel", "phone_number", "phonenumber"}
	messagePatterns = []string{"message", "bericht", "opmerking", "comments", "comment", "toelichting", "vraag"}

	emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

func matchesAny(key string, patterns []string) bool {
	for _, p := range patterns {
		if key == p {
			return true
		}
	}
	return false
}
