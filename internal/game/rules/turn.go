package rules

import "fmt"

// Phase represents the broad phases of a turn.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseBeginning
	PhasePrecombatMain
	PhaseCombat
	PhasePostcombatMain
	PhaseEnd
)

var phaseNames = map[Phase]string{
	PhaseNone:           "NONE",
	PhaseBeginning:      "BEGINNING",
	PhasePrecombatMain:  "PRECOMBAT_MAIN",
	PhaseCombat:         "COMBAT",
	PhasePostcombatMain: "POSTCOMBAT_MAIN",
	PhaseEnd:            "END",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

// Step represents the individual steps that comprise a phase.
type Step int

const (
	StepNone Step = iota
	StepUntap
	StepUpkeep
	StepDraw
	StepBeginningOfCombat
	StepDeclareAttackers
	StepDeclareBlockers
	StepCombatDamage
	StepEndOfCombat
	StepEnd
	StepCleanup
)

var stepNames = map[Step]string{
	StepNone:              "NONE",
	StepUntap:             "UNTAP",
	StepUpkeep:            "UPKEEP",
	StepDraw:              "DRAW",
	StepBeginningOfCombat: "BEGINNING_OF_COMBAT",
	StepDeclareAttackers:  "DECLARE_ATTACKERS",
	StepDeclareBlockers:   "DECLARE_BLOCKERS",
	StepCombatDamage:      "COMBAT_DAMAGE",
	StepEndOfCombat:       "END_OF_COMBAT",
	StepEnd:               "END",
	StepCleanup:           "CLEANUP",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STEP_%d", int(s))
}

// IsCombatWindow reports whether the step belongs to the part of combat that
// must be played out once started.
func (s Step) IsCombatWindow() bool {
	switch s {
	case StepDeclareAttackers, StepDeclareBlockers, StepCombatDamage:
		return true
	}
	return false
}

// HasPriority reports whether players normally receive priority in the step.
func (s Step) HasPriority() bool {
	return s != StepUntap && s != StepCleanup
}

// PhaseDescriptor is the static description of a phase: its identity and
// the ordered steps it is made of. Main phases have no steps.
type PhaseDescriptor struct {
	Type  Phase
	Steps []Step
}

// TurnDescriptor is the static description of a turn.
type TurnDescriptor struct {
	Phases []PhaseDescriptor
}

// DefaultTurn is the standard turn structure.
var DefaultTurn = TurnDescriptor{
	Phases: []PhaseDescriptor{
		{Type: PhaseBeginning, Steps: []Step{StepUntap, StepUpkeep, StepDraw}},
		{Type: PhasePrecombatMain},
		{Type: PhaseCombat, Steps: []Step{
			StepBeginningOfCombat,
			StepDeclareAttackers,
			StepDeclareBlockers,
			StepCombatDamage,
			StepEndOfCombat,
		}},
		{Type: PhasePostcombatMain},
		{Type: PhaseEnd, Steps: []Step{StepEnd, StepCleanup}},
	},
}

// Entry is one (phase, step) position of a turn. Step is StepNone for
// phases without steps.
type Entry struct {
	Phase Phase
	Step  Step
}

func (e Entry) String() string {
	if e.Step == StepNone {
		return e.Phase.String()
	}
	return e.Phase.String() + "/" + e.Step.String()
}

// Sequence flattens the descriptor into the positions a turn goes through.
func (t TurnDescriptor) Sequence() []Entry {
	var out []Entry
	for _, p := range t.Phases {
		if len(p.Steps) == 0 {
			out = append(out, Entry{Phase: p.Type})
			continue
		}
		for _, s := range p.Steps {
			out = append(out, Entry{Phase: p.Type, Step: s})
		}
	}
	return out
}

// Phase returns the descriptor of a phase type.
func (t TurnDescriptor) Phase(p Phase) (PhaseDescriptor, bool) {
	for _, d := range t.Phases {
		if d.Type == p {
			return d, true
		}
	}
	return PhaseDescriptor{}, false
}

// PhaseOf returns the phase a step belongs to.
func (t TurnDescriptor) PhaseOf(s Step) Phase {
	for _, d := range t.Phases {
		for _, step := range d.Steps {
			if step == s {
				return d.Type
			}
		}
	}
	return PhaseNone
}
