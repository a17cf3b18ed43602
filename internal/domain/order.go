package domain

import (
	"sort"
	"time"
)

type Order struct {
	ID            int64     `json:"id" db:"id"`
	UserID        int64     `json:"user_id" db:"user_id"`
	MenuID        int64     `json:"menu_id" db:"menu_id"`
	PriceAtMoment Amount    `json:"price_at_moment" db:"price_at_moment"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// OrderLine is an order joined with the names of its user and menu item.
type OrderLine struct {
	Order
	UserName  string `json:"user_name" db:"user_name"`
	MenuTitle string `json:"menu_title" db:"menu_title"`
	MenuDate  string `json:"menu_date" db:"menu_date"`
}

type OrderResult struct {
	Order      *Order `json:"order"`
	NewBalance Amount `json:"new_balance"`
}

type ItemTally struct {
	MenuID int64    `json:"menu_id"`
	Title  string   `json:"title"`
	Count  int      `json:"count"`
	Total  Amount   `json:"total"`
	Eaters []string `json:"eaters"`
}

type DaySummary struct {
	Date   string      `json:"date"`
	Orders int         `json:"orders"`
	Total  Amount      `json:"total"`
	Items  []ItemTally `json:"items"`
}

// Summarize groups order lines by menu item, keeping items in first-seen order.
func Summarize(date string, lines []*OrderLine) *DaySummary {
	s := &DaySummary{Date: date, Items: []ItemTally{}}
	index := make(map[int64]int)
	for _, l := range lines {
		i, ok := index[l.MenuID]
		if !ok {
			i = len(s.Items)
			index[l.MenuID] = i
			s.Items = append(s.Items, ItemTally{MenuID: l.MenuID, Title: l.MenuTitle})
		}
		t := &s.Items[i]
		t.Count++
		t.Total += l.PriceAtMoment
		t.Eaters = append(t.Eaters, l.UserName)
		s.Orders++
		s.Total += l.PriceAtMoment
	}
	for i := range s.Items {
		sort.Strings(s.Items[i].Eaters)
	}
	return s
}
