package models

import "github.com/shopspring/decimal"

// Aggregate rows returned by the analytics queries.

type DayCount struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int64  `json:"count"`
}

type MonthCount struct {
	Month string `json:"month"` // YYYY-MM
	Count int64  `json:"count"`
}

type HourCount struct {
	Hour  int   `json:"hour"`
	Count int64 `json:"count"`
}

type KeyCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

type RadiusCount struct {
	Radius int   `json:"radius"`
	Count  int64 `json:"count"`
}

type RatingCount struct {
	Rating decimal.Decimal `json:"rating"`
	Count  int64           `json:"count"`
}

type ShopTotals struct {
	Total    int64 `json:"total_mechanics"`
	Active   int64 `json:"active_mechanics"`
	Inactive int64 `json:"inactive_mechanics"`
}
