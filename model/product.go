package model

import "time"

// Product is a rentable stock item. Count is the number of units
// currently available; reservations decrement it, returns put it back.
type Product struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Size      string    `json:"size"`
	Price     int64     `json:"price"`
	Weight    float64   `json:"weight"`
	Count     int64     `json:"count"`
	CreatedAt time.Time `json:"created_at"`
}
