package notionsync

import (
	"strings"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"
)

// Property names of the transactions database.
const (
	PropName        = "Name"
	PropAmount      = "Amount"
	PropDate        = "Date"
	PropMethod      = "Method"
	PropCategory    = "Category"
	PropSubcategory = "Subcategory"
)

// PageToRawRecord converts a row of the transactions database. The page id is
// the external id. It returns false when every property is empty.
func PageToRawRecord(page notionapi.Page) (domain.RawRecord, bool) {
	rec := domain.RawRecord{ExternalID: string(page.ID)}
	props := page.Properties

	if title, ok := props[PropName].(*notionapi.TitleProperty); ok {
		rec.Name = nonEmpty(plainText(title.Title))
	}
	if num, ok := props[PropAmount].(*notionapi.NumberProperty); ok {
		// The API reports an empty number as 0, so a present property always
		// yields an amount.
		amount := decimal.NewFromFloat(num.Number)
		rec.Amount = &amount
	}
	if date, ok := props[PropDate].(*notionapi.DateProperty); ok && date.Date != nil && date.Date.Start != nil {
		t := time.Time(*date.Date.Start).UTC()
		rec.Date = &t
	}
	rec.Method = selectName(props[PropMethod])
	rec.Category = selectName(props[PropCategory])
	rec.SubCategory = selectName(props[PropSubcategory])

	empty := rec.Name == nil && (rec.Amount == nil || rec.Amount.IsZero()) && rec.Date == nil &&
		rec.Method == nil && rec.Category == nil && rec.SubCategory == nil
	return rec, !empty
}

func plainText(parts []notionapi.RichText) string {
	var b strings.Builder
	for _, p := range parts {
		if p.PlainText != "" {
			b.WriteString(p.PlainText)
		} else if p.Text != nil {
			b.WriteString(p.Text.Content)
		}
	}
	return b.String()
}

func selectName(prop notionapi.Property) *string {
	sel, ok := prop.(*notionapi.SelectProperty)
	if !ok {
		return nil
	}
	return nonEmpty(sel.Select.Name)
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
