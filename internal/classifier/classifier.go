// Package classifier sorts inbound mail into a response category by
// counting literal keyword hits. Matching is case-insensitive substring
// matching over the subject and body, with no stemming or fuzziness.
package classifier

import (
	"strings"

	"codexcity/internal/model"
)

var orderKeywords = []string{
	"order status",
	"order number",
	"tracking number",
	"tracking",
	"shipping",
	"shipment",
	"delivery",
	"delivered",
	"purchase",
	"invoice",
	"receipt",
	"refund",
	"return",
}

var supportKeywords = []string{
	"help",
	"support",
	"issue",
	"problem",
	"error",
	"bug",
	"broken",
	"not working",
	"doesn't work",
	"can't",
	"unable to",
	"question",
	"password",
	"login",
}

// Classify picks the category whose keyword list has strictly more hits.
// Ties, including no hits at all, resolve to general. Confidence is always
// the larger of the two hit counts.
func Classify(subject, body string) model.Classification {
	text := strings.ToLower(subject + " " + body)

	orderScore := score(text, orderKeywords)
	supportScore := score(text, supportKeywords)

	switch {
	case orderScore > supportScore:
		return model.Classification{Category: model.CategoryOrder, Confidence: orderScore}
	case supportScore > orderScore:
		return model.Classification{Category: model.CategorySupport, Confidence: supportScore}
	default:
		return model.Classification{Category: model.CategoryGeneral, Confidence: orderScore}
	}
}

func score(text string, keywords []string) int {
	total := 0
	for _, keyword := range keywords {
		total += strings.Count(text, keyword)
	}
	return total
}
