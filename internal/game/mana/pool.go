package mana

import (
	"fmt"
	"strings"
)

// ManaType represents a type of mana.
type ManaType string

const (
	ManaWhite     ManaType = "WHITE"
	ManaBlue      ManaType = "BLUE"
	ManaBlack     ManaType = "BLACK"
	ManaRed       ManaType = "RED"
	ManaGreen     ManaType = "GREEN"
	ManaColorless ManaType = "COLORLESS"
)

// Types lists every mana type in symbol order.
var Types = []ManaType{ManaWhite, ManaBlue, ManaBlack, ManaRed, ManaGreen, ManaColorless}

var symbols = map[ManaType]string{
	ManaWhite:     "W",
	ManaBlue:      "U",
	ManaBlack:     "B",
	ManaRed:       "R",
	ManaGreen:     "G",
	ManaColorless: "C",
}

// Symbol returns the single letter symbol of the type.
func (t ManaType) Symbol() string {
	return symbols[t]
}

// ParseManaType parses a symbol letter or a type name.
func ParseManaType(s string) (ManaType, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for t, sym := range symbols {
		if s == sym || s == string(t) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown mana type %q", s)
}

// Pool is a player's mana pool. It is an immutable value so it can be stored
// as a property and restored by undo; every operation returns a new pool.
type Pool struct {
	White     int
	Blue      int
	Black     int
	Red       int
	Green     int
	Colorless int
}

func (p *Pool) slot(t ManaType) *int {
	switch t {
	case ManaWhite:
		return &p.White
	case ManaBlue:
		return &p.Blue
	case ManaBlack:
		return &p.Black
	case ManaRed:
		return &p.Red
	case ManaGreen:
		return &p.Green
	case ManaColorless:
		return &p.Colorless
	}
	return nil
}

// Get returns the amount of one mana type.
func (p Pool) Get(t ManaType) int {
	if s := p.slot(t); s != nil {
		return *s
	}
	return 0
}

// Add returns the pool with amount mana of type t added.
func (p Pool) Add(t ManaType, amount int) Pool {
	if s := p.slot(t); s != nil && amount > 0 {
		*s += amount
	}
	return p
}

// Spend returns the pool with amount mana of type t removed, or false when
// there is not enough.
func (p Pool) Spend(t ManaType, amount int) (Pool, bool) {
	if amount <= 0 {
		return p, true
	}
	if p.Get(t) < amount {
		return p, false
	}
	*p.slot(t) -= amount
	return p, true
}

// Total returns the mana count across all types.
func (p Pool) Total() int {
	return p.White + p.Blue + p.Black + p.Red + p.Green + p.Colorless
}

// IsEmpty reports whether the pool holds no mana.
func (p Pool) IsEmpty() bool {
	return p.Total() == 0
}

func (p Pool) String() string {
	if p.IsEmpty() {
		return "{}"
	}
	var b strings.Builder
	for _, t := range Types {
		for i := 0; i < p.Get(t); i++ {
			b.WriteString("{" + t.Symbol() + "}")
		}
	}
	return b.String()
}
