package mana

import (
	"fmt"
)

// PaymentResult represents the result of a payment attempt.
type PaymentResult struct {
	Success   bool
	Remaining Pool // pool after payment; unchanged on failure
	Reason    string
}

// CalculatePayment pays cost from pool. Colored requirements are paid
// exactly; generic mana is paid with colorless first, then with whatever
// color the pool holds the most of.
func CalculatePayment(cost ManaCost, pool Pool) PaymentResult {
	remaining := pool
	for _, t := range Types {
		need := cost.Colored(t)
		var ok bool
		remaining, ok = remaining.Spend(t, need)
		if !ok {
			return PaymentResult{
				Remaining: pool,
				Reason:    fmt.Sprintf("insufficient %s mana (need %d)", t, need),
			}
		}
	}

	generic := cost.Generic
	for generic > 0 {
		t, ok := largest(remaining)
		if !ok {
			return PaymentResult{
				Remaining: pool,
				Reason:    fmt.Sprintf("insufficient mana for generic cost (need %d more)", generic),
			}
		}
		remaining, _ = remaining.Spend(t, 1)
		generic--
	}
	return PaymentResult{Success: true, Remaining: remaining}
}

func largest(p Pool) (ManaType, bool) {
	if p.Colorless > 0 {
		return ManaColorless, true
	}
	best, bestAmount := ManaType(""), 0
	for _, t := range Types {
		if amount := p.Get(t); amount > bestAmount {
			best, bestAmount = t, amount
		}
	}
	return best, bestAmount > 0
}

// Source is something that can be tapped for one mana, such as a land.
type Source struct {
	Key      int
	Produces ManaType
}

// PlanSources picks the sources to tap so that pool plus the produced mana
// pays cost. It returns the keys of the chosen sources, in the order given,
// or false when the cost cannot be paid.
func PlanSources(cost ManaCost, pool Pool, sources []Source) ([]int, bool) {
	used := make([]bool, len(sources))
	available := pool

	// Colored shortfalls can only be covered by matching sources.
	for _, t := range Types {
		short := cost.Colored(t) - available.Get(t)
		for i := 0; i < len(sources) && short > 0; i++ {
			if !used[i] && sources[i].Produces == t {
				used[i] = true
				available = available.Add(t, 1)
				short--
			}
		}
		if short > 0 {
			return nil, false
		}
	}

	short := cost.ManaValue() - available.Total()
	for i := 0; i < len(sources) && short > 0; i++ {
		if !used[i] {
			used[i] = true
			available = available.Add(sources[i].Produces, 1)
			short--
		}
	}
	if !CalculatePayment(cost, available).Success {
		return nil, false
	}

	var keys []int
	for i, s := range sources {
		if used[i] {
			keys = append(keys, s.Key)
		}
	}
	return keys, true
}
