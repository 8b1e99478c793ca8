// Package personalize fills reply templates.
package personalize

import (
	"net/mail"
	"sort"
	"strings"
	"unicode"
)

// Personalize replaces every [Key] token in text with vars[Key]. Keys are
// applied one after another in sorted order, each over the whole text, so
// a substituted value is only rewritten by keys that sort after it.
// Tokens without a matching key are left as they are.
func Personalize(text string, vars map[string]string) string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		text = strings.ReplaceAll(text, "["+k+"]", vars[k])
	}
	return text
}

// SenderAddress returns the bare address of a From header value.
func SenderAddress(from string) string {
	if addr, err := mail.ParseAddress(from); err == nil {
		return addr.Address
	}
	if start := strings.LastIndex(from, "<"); start >= 0 {
		if end := strings.LastIndex(from, ">"); end > start {
			return strings.TrimSpace(from[start+1 : end])
		}
	}
	return strings.TrimSpace(from)
}

// SenderName derives a greeting name from a From header value. The display
// name wins when present, otherwise the local part of the address is split
// on separators and title-cased ("jane.doe@x" -> "Jane Doe").
func SenderName(from string) string {
	if addr, err := mail.ParseAddress(from); err == nil && addr.Name != "" {
		return addr.Name
	}
	if i := strings.Index(from, "<"); i > 0 {
		if name := strings.Trim(strings.TrimSpace(from[:i]), `"`); name != "" {
			return name
		}
	}

	local := SenderAddress(from)
	if at := strings.Index(local, "@"); at >= 0 {
		local = local[:at]
	}

	words := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+' || unicode.IsSpace(r)
	})
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
