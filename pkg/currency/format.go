package currency

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Position is where the currency symbol goes relative to the numeral.
type Position int

const (
	Before Position = iota
	After
)

// DisplayRule is the fixed presentation of one currency.
type DisplayRule struct {
	Symbol    string
	Position  Position
	Precision int32
}

var displayRules = map[string]DisplayRule{
	USD: {Symbol: "$", Position: Before, Precision: 2},
	CNY: {Symbol: "元", Position: Before, Precision: 2},
	VND: {Symbol: "đ", Position: After, Precision: 0},
}

// RuleFor returns the display rule for a normalized code, falling back to USD's.
func RuleFor(code string) DisplayRule {
	if r, ok := displayRules[code]; ok {
		return r
	}
	return displayRules[USD]
}

// Formatter renders amounts with locale-aware digit grouping.
type Formatter struct {
	group   string
	decimal string
}

// NewFormatter returns a Formatter grouping digits the way tag does.
// The separators are read once from the locale's rendering of 1234.5.
func NewFormatter(tag language.Tag) *Formatter {
	sample := message.NewPrinter(tag).Sprintf("%v", number.Decimal(1234.5, number.Scale(1)))
	var seps []string
	var cur strings.Builder
	for _, r := range sample {
		if unicode.IsDigit(r) {
			if cur.Len() > 0 {
				seps = append(seps, cur.String())
				cur.Reset()
			}
			continue
		}
		cur.WriteRune(r)
	}
	f := &Formatter{group: ",", decimal: "."}
	switch len(seps) {
	case 1:
		f.group, f.decimal = "", seps[0]
	case 2:
		f.group, f.decimal = seps[0], seps[1]
	}
	return f
}

// DefaultLocale groups digits with commas and uses a dot decimal separator.
var DefaultLocale = language.English

// ParseLocale returns the tag for a BCP 47 locale, or DefaultLocale when
// locale is empty or invalid.
func ParseLocale(locale string) language.Tag {
	if locale == "" {
		return DefaultLocale
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return DefaultLocale
	}
	return tag
}

var defaultFormatter = NewFormatter(DefaultLocale)

// Format renders amount using the default (English grouping) formatter.
func Format(amount decimal.Decimal, currency string) string {
	return defaultFormatter.Format(amount, currency)
}

// Format renders amount with the symbol, position and precision of currency.
// Rounding to the display precision is half away from zero and happens only
// here. A negative sign goes in front of the symbol.
func (f *Formatter) Format(amount decimal.Decimal, currency string) string {
	rule := RuleFor(Code(currency))
	rounded := amount.Round(rule.Precision)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
	}
	numeral := f.numeral(rounded.Abs().StringFixed(rule.Precision))
	if rule.Position == After {
		return sign + numeral + rule.Symbol
	}
	return sign + rule.Symbol + numeral
}

// numeral groups the integer digits of a non-negative fixed-point string.
func (f *Formatter) numeral(fixed string) string {
	intPart, frac, hasFrac := strings.Cut(fixed, ".")
	var b strings.Builder
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(f.group)
		}
		b.WriteRune(d)
	}
	if hasFrac {
		b.WriteString(f.decimal)
		b.WriteString(frac)
	}
	return b.String()
}
