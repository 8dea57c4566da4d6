package service

import "strings"

// Form builders let institutions name their fields freely, so submissions
// arrive with no fixed schema. These helpers probe the common spellings the
// platform has seen in the wild.

var emailFieldKeys = []string{"email", "emailAddress", "email_address", "Email Address"}
var firstNameKeys = []string{"firstName", "first_name", "First Name", "fname"}
var lastNameKeys = []string{"lastName", "last_name", "Last Name", "lname"}
var fullNameKeys = []string{"fullName", "full_name", "Full Name", "name"}
var gradeFieldKeys = []string{"grade", "year", "level", "class", "Grade", "Year", "Level", "Class"}

func stringField(values map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := values[key]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// extractEmail pulls the student email out of a free-form submission.
func extractEmail(values map[string]interface{}) string {
	return stringField(values, emailFieldKeys...)
}

// extractStudentName assembles a display name from whatever name fields the
// form happened to define, falling back to the email's local part.
func extractStudentName(values map[string]interface{}, email string) string {
	if full := stringField(values, fullNameKeys...); full != "" {
		return full
	}

	first := stringField(values, firstNameKeys...)
	last := stringField(values, lastNameKeys...)
	if combined := strings.TrimSpace(first + " " + last); combined != "" {
		return combined
	}

	for key, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if strings.Contains(strings.ToLower(key), "name") && s != "" && s != "undefined" {
			return s
		}
	}

	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return ""
}

// extractGrade pulls the grade/year value, defaulting to "N/A".
func extractGrade(values map[string]interface{}) string {
	if grade := stringField(values, gradeFieldKeys...); grade != "" {
		return grade
	}
	return "N/A"
}
