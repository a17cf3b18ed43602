package domain

import "time"

type MenuItem struct {
	ID        int64     `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Price     Amount    `json:"price" db:"price"`
	Date      string    `json:"date" db:"date"` // YYYY-MM-DD, local to Location
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// OfferedOn reports whether the item is on sale for the given menu date.
func (m *MenuItem) OfferedOn(date string) bool {
	return m.IsActive && m.Date == date
}
