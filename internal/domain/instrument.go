// Package domain defines core data structures shared by the feeds, the ledger,
// the renderer and the publishers.
package domain

// Instrument one of the two tracked sentiment indices.
type Instrument string

const (
	// InstrumentStock CNN Fear & Greed index for the equity market.
	InstrumentStock Instrument = "stock"
	// InstrumentCrypto alternative.me Fear & Greed index for bitcoin.
	InstrumentCrypto Instrument = "crypto"
)

// String returns the string representation.
func (i Instrument) String() string {
	return string(i)
}

// IsValid checks if the Instrument value is valid.
func (i Instrument) IsValid() bool {
	return i == InstrumentStock || i == InstrumentCrypto
}

// Instruments lists every tracked instrument in rendering order.
func Instruments() []Instrument {
	return []Instrument{InstrumentStock, InstrumentCrypto}
}
