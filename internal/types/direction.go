package types

// Direction is the trade direction produced by the classifier for one bar.
type Direction string

const (
	// DirectionBuy opens a long (ask) position.
	DirectionBuy Direction = "buy"
	// DirectionSell opens a short (bid) position.
	DirectionSell Direction = "sell"
	// DirectionNone takes no action.
	DirectionNone Direction = "none"
)

// Reverse swaps buy and sell. None stays none.
func (d Direction) Reverse() Direction {
	switch d {
	case DirectionBuy:
		return DirectionSell
	case DirectionSell:
		return DirectionBuy
	default:
		return DirectionNone
	}
}

// Sign returns +1 for buy, -1 for sell and 0 for none.
func (d Direction) Sign() int {
	switch d {
	case DirectionBuy:
		return 1
	case DirectionSell:
		return -1
	default:
		return 0
	}
}

// IsTrade reports whether the direction opens a position.
func (d Direction) IsTrade() bool {
	return d == DirectionBuy || d == DirectionSell
}
