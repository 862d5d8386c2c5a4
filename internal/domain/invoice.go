package domain

import "time"

// Invoice describes the billing cycle a card is currently in.
type Invoice struct {
	Closing time.Time `json:"closing_date"`
	Due     time.Time `json:"due_date"`
}

// InvoiceWindow returns the closing and due dates of the invoice open on asOf.
// Purchases on the closing day still belong to the closing invoice. The due
// date is the first DueDay strictly after the closing date. Days past the end
// of a month clamp to its last day.
func InvoiceWindow(card *CreditCard, asOf time.Time) Invoice {
	loc := asOf.Location()
	y, m, d := asOf.Date()

	closing := dayInMonth(y, m, card.ClosingDay, loc)
	if d > closing.Day() {
		closing = dayInMonth(y, m+1, card.ClosingDay, loc)
	}

	cy, cm, _ := closing.Date()
	due := dayInMonth(cy, cm, card.DueDay, loc)
	if !due.After(closing) {
		due = dayInMonth(cy, cm+1, card.DueDay, loc)
	}

	return Invoice{Closing: closing, Due: due}
}

// dayInMonth builds the given day of month, clamping to the month's last day.
// Month overflow (m == 13) is normalized by time.Date.
func dayInMonth(y int, m time.Month, day int, loc *time.Location) time.Time {
	first := time.Date(y, m, 1, 0, 0, 0, 0, loc)
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, loc)
}
