package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type DepthSide string

// Side values match the level2_data column encoding.
const (
	DepthSideBid DepthSide = "B"
	DepthSideAsk DepthSide = "S"
)

// MaxDepthLevels caps the book at 10 ranked levels per side. Updates with
// more levels are truncated, never rejected.
const MaxDepthLevels = 10

type DepthLevel struct {
	Side       DepthSide       `db:"side"`
	Level      int32           `db:"level"` // 1-based rank
	Price      decimal.Decimal `db:"price"`
	Size       int64           `db:"size"`
	OrderCount int32           `db:"order_count"`
}

type DepthSnapshot struct {
	Timestamp time.Time
	Symbol    string
	Exchange  string
	Levels    []DepthLevel
}

func (d DepthSnapshot) TableName() string {
	return "level2_data"
}

// SideCount returns how many levels the snapshot carries for one side.
func (d DepthSnapshot) SideCount(side DepthSide) int {
	count := 0
	for _, level := range d.Levels {
		if level.Side == side {
			count++
		}
	}
	return count
}
