package mana

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ManaCost represents a parsed mana cost.
type ManaCost struct {
	Generic   int
	White     int
	Blue      int
	Black     int
	Red       int
	Green     int
	Colorless int
}

var symbolPattern = regexp.MustCompile(`\{([^}]+)\}`)

// ParseCost parses a mana cost string (e.g., "{1}{G}", "{2}{R}{R}").
func ParseCost(costStr string) (ManaCost, error) {
	var cost ManaCost
	costStr = strings.TrimSpace(costStr)
	if costStr == "" {
		return cost, nil
	}
	matches := symbolPattern.FindAllStringSubmatch(costStr, -1)
	if len(matches) == 0 {
		return cost, fmt.Errorf("invalid mana cost %q", costStr)
	}
	for _, match := range matches {
		symbol := strings.ToUpper(strings.TrimSpace(match[1]))
		if num, err := strconv.Atoi(symbol); err == nil {
			if num < 0 {
				return cost, fmt.Errorf("negative generic mana in %q", costStr)
			}
			cost.Generic += num
			continue
		}
		t, err := ParseManaType(symbol)
		if err != nil {
			return cost, fmt.Errorf("unknown mana symbol: {%s}", symbol)
		}
		cost = cost.add(t, 1)
	}
	return cost, nil
}

func (mc ManaCost) add(t ManaType, n int) ManaCost {
	switch t {
	case ManaWhite:
		mc.White += n
	case ManaBlue:
		mc.Blue += n
	case ManaBlack:
		mc.Black += n
	case ManaRed:
		mc.Red += n
	case ManaGreen:
		mc.Green += n
	case ManaColorless:
		mc.Colorless += n
	}
	return mc
}

// Colored returns the amount of a specific mana type the cost requires.
func (mc ManaCost) Colored(t ManaType) int {
	switch t {
	case ManaWhite:
		return mc.White
	case ManaBlue:
		return mc.Blue
	case ManaBlack:
		return mc.Black
	case ManaRed:
		return mc.Red
	case ManaGreen:
		return mc.Green
	case ManaColorless:
		return mc.Colorless
	}
	return 0
}

// ManaValue returns the total amount of mana the cost requires.
func (mc ManaCost) ManaValue() int {
	return mc.Generic + mc.White + mc.Blue + mc.Black + mc.Red + mc.Green + mc.Colorless
}

// IsZero reports whether the cost is free.
func (mc ManaCost) IsZero() bool {
	return mc.ManaValue() == 0
}

// String returns a string representation of the mana cost.
func (mc ManaCost) String() string {
	var parts []string
	if mc.Generic > 0 {
		parts = append(parts, fmt.Sprintf("{%d}", mc.Generic))
	}
	for _, t := range Types {
		for i := 0; i < mc.Colored(t); i++ {
			parts = append(parts, "{"+t.Symbol()+"}")
		}
	}
	if len(parts) == 0 {
		return "{0}"
	}
	return strings.Join(parts, "")
}

// CanPay checks if a mana pool can pay for this cost.
func (mc ManaCost) CanPay(pool Pool) bool {
	return CalculatePayment(mc, pool).Success
}
