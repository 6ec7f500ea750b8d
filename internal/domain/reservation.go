package domain

// Reservation — резерв товара под заказ (таблица reserve).
type Reservation struct {
	// ID — идентификатор резерва (id_reserve).
	ID string `json:"id_reserve"`

	// ProductID — товар, под который сделан резерв (id_prod).
	ProductID string `json:"id_prod"`

	// Quantity — зарезервированное количество.
	Quantity int `json:"quantity"`
}

// Stock — складской остаток товара (таблица sklad).
type Stock struct {
	ProductID string `json:"id_prod"`

	// Free — свободное количество.
	Free int `json:"free"`

	// Reserved — количество в резервах.
	Reserved int `json:"reserv"`
}

// Release возвращает qty из резерва в свободный остаток.
// Reserved не уходит ниже нуля.
func (s *Stock) Release(qty int) {
	s.Free += qty
	s.Reserved = max(s.Reserved-qty, 0)
}
