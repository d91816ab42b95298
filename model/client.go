package model

import "time"

// Client is a rental customer. Phone is the natural key used by
// order creation to find or create the client on the fly.
type Client struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Phone     string    `json:"phone"`
	Rating    string    `json:"rating,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
