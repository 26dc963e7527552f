// Package locale picks the recognition language from the host's locale
// preferences.
package locale

import (
	"os"
	"strings"

	"golang.org/x/text/language"
)

const (
	Kiswahili = "sw-KE"
	English   = "en-US"
)

var envKeys = []string{"LC_ALL", "LC_MESSAGES", "LANG"}

// Select maps the primary preferred tag onto a supported recognition
// language. Anything that is not Swahili falls back to English.
func Select(preferred []string) string {
	if len(preferred) == 0 {
		return English
	}
	primary := strings.ToLower(strings.TrimSpace(preferred[0]))
	if strings.HasPrefix(primary, "sw") {
		return Kiswahili
	}
	return English
}

// Preferred returns the host locale preferences as BCP 47 tags, most
// preferred first.
func Preferred() []string {
	return preferredFrom(os.Getenv)
}

// Current is Select(Preferred()).
func Current() string {
	return Select(Preferred())
}

// Resolve selects from override when it is a valid tag, otherwise from the
// host locale. Either way the result is Kiswahili or English.
func Resolve(override string) string {
	if tag, ok := Normalize(override); ok {
		return Select([]string{tag})
	}
	return Current()
}

func preferredFrom(getenv func(string) string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(raw string) {
		tag, ok := Normalize(raw)
		if !ok || seen[tag] {
			return
		}
		seen[tag] = true
		out = append(out, tag)
	}

	for _, key := range envKeys {
		add(getenv(key))
	}
	for _, part := range strings.Split(getenv("LANGUAGE"), ":") {
		add(part)
	}
	return out
}

// Normalize converts POSIX locale names such as "sw_KE.UTF-8" into BCP 47
// tags. The C and POSIX locales carry no language and are rejected.
func Normalize(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexAny(raw, ".@"); i >= 0 {
		raw = raw[:i]
	}
	switch raw {
	case "", "C", "POSIX":
		return "", false
	}

	tag, err := language.Parse(strings.ReplaceAll(raw, "_", "-"))
	if err != nil {
		return "", false
	}
	return tag.String(), true
}
