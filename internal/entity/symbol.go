package entity

import "time"

type Symbol struct {
	Symbol    string    `db:"symbol" json:"symbol"`
	Exchange  string    `db:"exchange" json:"exchange"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (s Symbol) TableName() string {
	return "symbols"
}
