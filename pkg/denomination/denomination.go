// Package denomination defines the fixed catalog of Australian currency
// denominations handled by the cash engine.
package denomination

import (
	"github.com/iwvelando/end-of-trade/pkg/domainerr"
	"github.com/iwvelando/end-of-trade/pkg/mathutil"
	"github.com/shopspring/decimal"
)

// Key is the symbolic name of a denomination, e.g. "5c" or "$20".
type Key string

// Catalog keys in ascending face-value order.
const (
	FiveCents   Key = "5c"
	TenCents    Key = "10c"
	TwentyCents Key = "20c"
	FiftyCents  Key = "50c"
	OneDollar   Key = "$1"
	TwoDollars  Key = "$2"
	Five        Key = "$5"
	Ten         Key = "$10"
	Twenty      Key = "$20"
	Fifty       Key = "$50"
	OneHundred  Key = "$100"
)

// Kind distinguishes coins from notes.
type Kind string

const (
	Coin Kind = "coin"
	Note Kind = "note"
)

// Denomination is one unit of currency with a fixed face value.
type Denomination struct {
	Key   Key
	Cents int64
	Kind  Kind
}

// FaceValue returns the face value as money.
func (d Denomination) FaceValue() decimal.Decimal {
	return mathutil.FromCents(d.Cents)
}

var catalog = [...]Denomination{
	{Key: FiveCents, Cents: 5, Kind: Coin},
	{Key: TenCents, Cents: 10, Kind: Coin},
	{Key: TwentyCents, Cents: 20, Kind: Coin},
	{Key: FiftyCents, Cents: 50, Kind: Coin},
	{Key: OneDollar, Cents: 100, Kind: Coin},
	{Key: TwoDollars, Cents: 200, Kind: Coin},
	{Key: Five, Cents: 500, Kind: Note},
	{Key: Ten, Cents: 1000, Kind: Note},
	{Key: Twenty, Cents: 2000, Kind: Note},
	{Key: Fifty, Cents: 5000, Kind: Note},
	{Key: OneHundred, Cents: 10000, Kind: Note},
}

// LargeNoteCount is the number of top notes the till float avoids unless they
// are needed to hit a target exactly.
const LargeNoteCount = 2

var index = func() map[Key]int {
	m := make(map[Key]int, len(catalog))
	for i, d := range catalog {
		m[d.Key] = i
	}
	return m
}()

// All returns the catalog in ascending face-value order.
func All() []Denomination {
	out := make([]Denomination, len(catalog))
	copy(out, catalog[:])
	return out
}

// Keys returns the catalog keys in ascending face-value order.
func Keys() []Key {
	keys := make([]Key, len(catalog))
	for i, d := range catalog {
		keys[i] = d.Key
	}
	return keys
}

// Small returns the denominations the till float draws from first, i.e.
// everything except the large notes, ascending.
func Small() []Denomination {
	return All()[:len(catalog)-LargeNoteCount]
}

// Large returns the large notes, ascending.
func Large() []Denomination {
	return All()[len(catalog)-LargeNoteCount:]
}

// Coins returns the coin denominations, ascending.
func Coins() []Denomination {
	return byKind(Coin)
}

// Notes returns the note denominations, ascending.
func Notes() []Denomination {
	return byKind(Note)
}

func byKind(kind Kind) []Denomination {
	var out []Denomination
	for _, d := range catalog {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// Valid reports whether key belongs to the catalog.
func Valid(key Key) bool {
	_, ok := index[key]
	return ok
}

// Lookup returns the denomination for key, failing with InvalidDenomination
// for keys outside the catalog.
func Lookup(key Key) (Denomination, error) {
	i, ok := index[key]
	if !ok {
		return Denomination{}, domainerr.Newf(domainerr.CodeInvalidDenomination, string(key), "invalid denomination: %s", key)
	}
	return catalog[i], nil
}

// MustLookup is Lookup for keys known to be valid; it panics otherwise.
func MustLookup(key Key) Denomination {
	d, err := Lookup(key)
	if err != nil {
		panic(err)
	}
	return d
}
