package supabase

import "github.com/tazhate/lunchbot/internal/domain"

const (
	tableUsers  = "users"
	tableMenu   = "menu"
	tableOrders = "orders"
)

type contactRow struct {
	ID       int64  `json:"id"`
	Phone    string `json:"phone"`
	FullName string `json:"full_name"`
}

type menuInsert struct {
	Title    string        `json:"title"`
	Price    domain.Amount `json:"price"`
	Date     string        `json:"date"`
	IsActive bool          `json:"is_active"`
}

type orderInsert struct {
	UserID        int64         `json:"user_id"`
	MenuID        int64         `json:"menu_id"`
	PriceAtMoment domain.Amount `json:"price_at_moment"`
}

// orderRow is an order with its embedded user and menu resources.
type orderRow struct {
	domain.Order
	User *struct {
		FullName string `json:"full_name"`
	} `json:"users"`
	Menu *struct {
		Title string `json:"title"`
		Date  string `json:"date"`
	} `json:"menu"`
}

func (r *orderRow) line() *domain.OrderLine {
	l := &domain.OrderLine{Order: r.Order}
	if r.User != nil {
		l.UserName = r.User.FullName
	}
	if r.Menu != nil {
		l.MenuTitle = r.Menu.Title
		l.MenuDate = r.Menu.Date
	}
	return l
}
