package model

import "time"

// Direction is the side of a signal.
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

// Signal is a dated buy/sell marker produced by a strategy.
type Signal struct {
	Date      time.Time
	Direction Direction
	Strategy  string
	Close     float64 // close of the bar the signal fired on
}
