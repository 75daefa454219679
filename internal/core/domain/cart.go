package domain

import "fmt"

type Product struct {
	ID    int     `json:"id"`
	Title string  `json:"title"`
	Price float64 `json:"price"`
	Image string  `json:"image"`
}

// LineItem is one product in the cart. Amount is always >= 1.
type LineItem struct {
	Product
	Amount int `json:"amount"`
}

type Cart []LineItem

func (c Cart) Find(productID int) (LineItem, int, bool) {
	for i, item := range c {
		if item.ID == productID {
			return item, i, true
		}
	}
	return LineItem{}, -1, false
}

func (c Cart) Contains(productID int) bool {
	_, _, ok := c.Find(productID)
	return ok
}

func (c Cart) Clone() Cart {
	out := make(Cart, len(c))
	copy(out, c)
	return out
}

// Validate checks the amount and uniqueness invariants.
func (c Cart) Validate() error {
	seen := make(map[int]struct{}, len(c))
	for _, item := range c {
		if item.Amount < 1 {
			return fmt.Errorf("product %d: amount %d below 1", item.ID, item.Amount)
		}
		if _, dup := seen[item.ID]; dup {
			return fmt.Errorf("product %d: duplicate line item", item.ID)
		}
		seen[item.ID] = struct{}{}
	}
	return nil
}

func (c Cart) TotalAmount() int {
	total := 0
	for _, item := range c {
		total += item.Amount
	}
	return total
}

func (c Cart) Subtotal() float64 {
	var total float64
	for _, item := range c {
		total += item.Price * float64(item.Amount)
	}
	return total
}
