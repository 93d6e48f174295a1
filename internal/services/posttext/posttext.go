// Package posttext composes the text published alongside the rendered image.
package posttext

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/fgi/internal/domain"
	"github.com/vadiminshakov/fgi/internal/services/sentiment"
)

const DefaultTitle = "CNN・Crypto Fear & Greed Index（恐怖と欲望指数）"

// Price spot price shown in an optional trailer line.
type Price struct {
	Pair  domain.Pair
	Value decimal.Decimal
}

// Options presentation settings of the post.
type Options struct {
	Title    string
	Locale   domain.Locale
	Hashtags []string
	Price    *Price
}

type line struct {
	marker string
	name   string
}

var lines = map[domain.Instrument]line{
	domain.InstrumentStock:  {marker: "⬜", name: "Stock"},
	domain.InstrumentCrypto: {marker: "🟧", name: "Bitcoin"},
}

// Compose builds the post text from both snapshots.
func Compose(stock, crypto domain.Snapshot, today time.Time, opts Options) string {
	title := opts.Title
	if title == "" {
		title = DefaultTitle
	}
	locale := opts.Locale
	if !locale.IsValid() {
		locale = domain.LocaleJA
	}

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(domain.DisplayDate(today, locale))
	b.WriteString("\n\n")
	b.WriteString(instrumentLine(stock, locale))
	b.WriteString("\n")
	b.WriteString(instrumentLine(crypto, locale))

	if opts.Price != nil {
		b.WriteString("\n\n")
		b.WriteString(priceLine(*opts.Price, locale))
	}

	if tags := hashtags(opts.Hashtags); tags != "" {
		b.WriteString("\n\n")
		b.WriteString(tags)
	}

	return b.String()
}

func separator(locale domain.Locale) string {
	if locale == domain.LocaleEN {
		return ": "
	}
	return "："
}

func instrumentLine(s domain.Snapshot, locale domain.Locale) string {
	l := lines[s.Instrument]
	diff := ""
	if prev, ok := s.Previous(); ok {
		diff = sentiment.DiffMarker(s.Now, prev)
	}
	return fmt.Sprintf("%s%s%s%d%s【%s】", l.marker, l.name, separator(locale), s.Now, diff, sentiment.Classify(s.Now))
}

func priceLine(p Price, locale domain.Locale) string {
	return fmt.Sprintf("₿ %s%s%s", p.Pair.Display(), separator(locale), formatPrice(p.Value))
}

// formatPrice renders v with two decimals and thousands separators.
func formatPrice(v decimal.Decimal) string {
	s := v.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")

	var grouped strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(r)
	}
	return sign + grouped.String() + "." + frac
}

func hashtags(tags []string) string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if !strings.HasPrefix(t, "#") {
			t = "#" + t
		}
		out = append(out, t)
	}
	return strings.Join(out, " ")
}
