package database

import "time"

// CycleRecord — итог одного цикла сканирования для записи в историю
type CycleRecord struct {
	StartedAt      time.Time
	InventoryFound bool
	ItemCount      int
	TotalValue     int64
	ErrorText      string
}

// ItemRecord — распознанный предмет внутри цикла
type ItemRecord struct {
	Name     string
	Row      int
	Col      int
	Score    float64
	PriceRUB int64
	Trader   string
}
