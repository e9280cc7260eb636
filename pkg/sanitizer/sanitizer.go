package sanitizer

import (
	"strings"
)

// MaxTextLength bounds the stored text fields of a booking.
const MaxTextLength = 128

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var textPipeline = Pipeline{
	StripControl,
	TrimAndNormalize,
	func(s string) string { return Truncate(s, MaxTextLength) },
	strings.TrimSpace,
}

// SanitizeText prepares a name, origin or destination for storage on the ledger.
func SanitizeText(input string) string {
	return textPipeline.Apply(input)
}
