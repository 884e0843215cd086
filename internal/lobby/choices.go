package lobby

import (
	"fmt"

	"github.com/fparadis2/mox/internal/game"
	"github.com/fparadis2/mox/internal/game/flow"
	"github.com/fparadis2/mox/internal/game/object"
	"github.com/fparadis2/mox/internal/game/rules"
	"google.golang.org/protobuf/types/known/structpb"
)

// Action names used in priority choices.
const (
	ActionPass     = "pass"
	ActionPlayLand = "play_land"
	ActionCast     = "cast"
)

func ids(in []object.ID) []any {
	out := make([]any, len(in))
	for i, id := range in {
		out[i] = int(id)
	}
	return out
}

func card(g *game.Game, id object.ID) map[string]any {
	return map[string]any{"id": int(id), "name": g.CardName(id)}
}

// EncodeChoice describes choice for the player asked. It reads g and must
// run on the goroutine owning it.
func EncodeChoice(g *game.Game, choice flow.Choice) (*structpb.Struct, error) {
	player := choice.Chooser()
	m := map[string]any{
		"kind":   string(choice.Kind()),
		"player": int(player),
		"turn":   g.TurnNumber(),
		"phase":  g.Phase().String(),
		"step":   g.Step().String(),
		"life":   g.LifeOf(player),
	}
	switch c := choice.(type) {
	case flow.PriorityChoice:
		actions := []any{map[string]any{"action": ActionPass}}
		for _, id := range g.Cards(player, rules.ZoneHand) {
			switch {
			case g.CanPlayLand(player, id):
				actions = append(actions, map[string]any{"action": ActionPlayLand, "card": card(g, id)})
			case g.CanCast(player, id):
				actions = append(actions, map[string]any{"action": ActionCast, "card": card(g, id)})
			}
		}
		m["actions"] = actions
	case flow.PayManaChoice:
		sources := make([]any, len(c.Sources))
		for i, s := range c.Sources {
			sources[i] = map[string]any{"id": s.Key, "produces": string(s.Produces)}
		}
		m["card"] = card(g, c.Card)
		m["cost"] = c.Cost.String()
		m["pool"] = c.Pool.String()
		m["sources"] = sources
		if a := flow.SuggestPayment(c); a != nil {
			m["suggested"] = int(a.Source)
		}
	case flow.TargetChoice:
		m["card"] = card(g, c.Card)
		m["candidates"] = ids(c.Candidates)
	case flow.MulliganChoice:
		m["hand"] = len(g.Cards(player, rules.ZoneHand))
	case flow.ModalChoice:
		options := make([]any, len(c.Options))
		for i, o := range c.Options {
			options[i] = o
		}
		m["question"] = c.Question
		m["options"] = options
	case flow.AttackersChoice:
		m["candidates"] = ids(c.Candidates)
	case flow.BlockersChoice:
		m["attackers"] = ids(c.Attackers)
		m["candidates"] = ids(c.Candidates)
	default:
		return nil, fmt.Errorf("encode %T: unsupported choice", choice)
	}
	return structpb.NewStruct(m)
}

func idField(body *structpb.Struct, name string) (object.ID, bool) {
	v, ok := body.GetFields()[name]
	if !ok {
		return object.InvalidID, false
	}
	if _, isNum := v.GetKind().(*structpb.Value_NumberValue); !isNum {
		return object.InvalidID, false
	}
	return object.ID(v.GetNumberValue()), true
}

func idList(body *structpb.Struct, name string) ([]object.ID, error) {
	var out []object.ID
	for i, v := range body.GetFields()[name].GetListValue().GetValues() {
		if _, ok := v.GetKind().(*structpb.Value_NumberValue); !ok {
			return nil, fmt.Errorf("%s[%d] is not an id", name, i)
		}
		out = append(out, object.ID(v.GetNumberValue()))
	}
	return out, nil
}

// DecodeAnswer converts the reply of a player into the answer type choice
// expects. Missing fields decode to the cancelling answer.
func DecodeAnswer(choice flow.Choice, body *structpb.Struct) (any, error) {
	player := choice.Chooser()
	f := body.GetFields()
	switch c := choice.(type) {
	case flow.PriorityChoice:
		id, _ := idField(body, "card")
		switch action := f["action"].GetStringValue(); action {
		case ActionPass, "":
			return flow.PassAction{}, nil
		case ActionPlayLand:
			return flow.PlayLandAction{Player: player, Card: id}, nil
		case ActionCast:
			return flow.CastSpellAction{Player: player, Card: id}, nil
		default:
			return nil, fmt.Errorf("unknown action %q", action)
		}
	case flow.PayManaChoice:
		id, ok := idField(body, "source")
		if !ok {
			return (*flow.PayManaAction)(nil), nil
		}
		return &flow.PayManaAction{Player: player, Source: id}, nil
	case flow.TargetChoice:
		id, _ := idField(body, "target")
		return id, nil
	case flow.MulliganChoice:
		return f["mulligan"].GetBoolValue(), nil
	case flow.ModalChoice:
		v, ok := f["index"]
		if !ok {
			return 0, nil
		}
		i := int(v.GetNumberValue())
		if i < 0 || i >= len(c.Options) {
			return nil, fmt.Errorf("option %d out of range", i)
		}
		return i, nil
	case flow.AttackersChoice:
		return idList(body, "attackers")
	case flow.BlockersChoice:
		var blocks []flow.Block
		for i, v := range f["blocks"].GetListValue().GetValues() {
			b := v.GetStructValue()
			blocker, ok1 := idField(b, "blocker")
			attacker, ok2 := idField(b, "attacker")
			if !ok1 || !ok2 {
				return nil, fmt.Errorf("blocks[%d] needs a blocker and an attacker", i)
			}
			blocks = append(blocks, flow.Block{Blocker: blocker, Attacker: attacker})
		}
		return blocks, nil
	default:
		return nil, fmt.Errorf("decode answer for %T: unsupported choice", choice)
	}
}

// EncodeAnswer is the inverse of DecodeAnswer, used by clients.
func EncodeAnswer(answer any) (*structpb.Struct, error) {
	m := map[string]any{}
	switch a := answer.(type) {
	case flow.PassAction:
		m["action"] = ActionPass
	case flow.PlayLandAction:
		m["action"], m["card"] = ActionPlayLand, int(a.Card)
	case flow.CastSpellAction:
		m["action"], m["card"] = ActionCast, int(a.Card)
	case *flow.PayManaAction:
		if a != nil {
			m["source"] = int(a.Source)
		}
	case object.ID:
		m["target"] = int(a)
	case bool:
		m["mulligan"] = a
	case int:
		m["index"] = a
	case []object.ID:
		m["attackers"] = ids(a)
	case []flow.Block:
		blocks := make([]any, len(a))
		for i, b := range a {
			blocks[i] = map[string]any{"blocker": int(b.Blocker), "attacker": int(b.Attacker)}
		}
		m["blocks"] = blocks
	default:
		return nil, fmt.Errorf("encode answer %T: unsupported", answer)
	}
	return structpb.NewStruct(m)
}
