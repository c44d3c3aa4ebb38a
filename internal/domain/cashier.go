package domain

type Cashier struct {
	ID        int
	Username  string
	FullName  string
	CounterID *int
	IsActive  bool
}

func (c Cashier) HasCounter() bool {
	return c.CounterID != nil
}
