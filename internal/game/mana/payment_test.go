package mana

import (
	"testing"
)

func TestParseCost(t *testing.T) {
	cost, err := ParseCost("{2}{R}{R}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cost.Generic != 2 || cost.Red != 2 || cost.ManaValue() != 4 {
		t.Errorf("unexpected cost %+v", cost)
	}
	if cost.String() != "{2}{R}{R}" {
		t.Errorf("unexpected string %q", cost.String())
	}

	if _, err := ParseCost("{Q}"); err == nil {
		t.Error("expected error for unknown symbol")
	}
	free, err := ParseCost("")
	if err != nil || !free.IsZero() {
		t.Errorf("expected free cost, got %+v (%v)", free, err)
	}
}

func TestPoolIsAValue(t *testing.T) {
	var pool Pool
	more := pool.Add(ManaWhite, 2)
	if pool.Get(ManaWhite) != 0 {
		t.Error("Add must not modify the receiver")
	}
	if more.Get(ManaWhite) != 2 {
		t.Errorf("expected 2 white mana, got %d", more.Get(ManaWhite))
	}

	less, ok := more.Spend(ManaWhite, 1)
	if !ok || less.Get(ManaWhite) != 1 || more.Get(ManaWhite) != 2 {
		t.Errorf("unexpected spend result %v %v %v", ok, less, more)
	}
	if _, ok := less.Spend(ManaBlue, 1); ok {
		t.Error("expected spending missing mana to fail")
	}
	if more.String() != "{W}{W}" {
		t.Errorf("unexpected string %q", more.String())
	}
}

func TestCalculatePayment(t *testing.T) {
	cost, _ := ParseCost("{1}{G}")
	pool := Pool{Green: 1, Red: 2}

	res := CalculatePayment(cost, pool)
	if !res.Success {
		t.Fatalf("expected payment to succeed: %s", res.Reason)
	}
	if res.Remaining != (Pool{Red: 1}) {
		t.Errorf("unexpected remaining pool %+v", res.Remaining)
	}

	res = CalculatePayment(cost, Pool{Red: 3})
	if res.Success {
		t.Error("expected payment without green to fail")
	}
	if res.Remaining != (Pool{Red: 3}) {
		t.Error("failed payment must leave the pool unchanged")
	}
	if !cost.CanPay(Pool{Green: 1, Colorless: 1}) {
		t.Error("expected colorless to pay generic")
	}
}

func TestPlanSources(t *testing.T) {
	cost, _ := ParseCost("{1}{W}")
	sources := []Source{
		{Key: 10, Produces: ManaRed},
		{Key: 11, Produces: ManaWhite},
		{Key: 12, Produces: ManaWhite},
	}

	keys, ok := PlanSources(cost, Pool{}, sources)
	if !ok {
		t.Fatal("expected a plan")
	}
	if len(keys) != 2 || keys[0] != 10 || keys[1] != 11 {
		t.Errorf("unexpected plan %v", keys)
	}

	keys, ok = PlanSources(cost, Pool{White: 1}, sources)
	if !ok || len(keys) != 1 {
		t.Errorf("expected floating mana to reduce the plan, got %v", keys)
	}

	if _, ok := PlanSources(cost, Pool{}, sources[:1]); ok {
		t.Error("expected no plan without a white source")
	}
}
