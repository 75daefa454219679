package domain

// Stock is the catalog's available quantity for a product at lookup time.
type Stock struct {
	ID     int `json:"id"`
	Amount int `json:"amount"`
}

func (s Stock) Covers(amount int) bool {
	return s.Amount >= amount
}

// Exceeds reports whether at least one more unit than amount is available.
func (s Stock) Exceeds(amount int) bool {
	return s.Amount > amount
}
