// Package templates holds the function map available to notification templates.
package templates

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// shortDigestLength is the number of hex characters kept by ShortDigest.
const shortDigestLength = 12

// Funcs defines the functions usable in notification templates.
var Funcs = template.FuncMap{
	"ToUpper":     strings.ToUpper,
	"ToLower":     strings.ToLower,
	"ToJSON":      toJSON,
	"Title":       cases.Title(language.AmericanEnglish).String,
	"ShortDigest": shortDigest,
}

// toJSON marshals a value to an indented JSON string.
// A marshaling failure is rendered into the message instead of aborting the template.
func toJSON(v any) string {
	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logrus.WithError(err).Warn("Failed to marshal JSON in notification template")

		return fmt.Sprintf("failed to marshal JSON in notification template: %v", err)
	}

	return string(bytes)
}

// shortDigest strips the algorithm prefix of a digest and truncates the hex part.
func shortDigest(digest string) string {
	_, hex, found := strings.Cut(digest, ":")
	if !found {
		hex = digest
	}

	if len(hex) > shortDigestLength {
		return hex[:shortDigestLength]
	}

	return hex
}
