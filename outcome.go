package tristate

// Outcome is the result of evaluating a single node in a tree.  In addition to
// TRUE and FALSE, a node may be Indeterminate when the record holds values for a
// field whose index-time representation cannot answer the predicate.
type Outcome int8

const (
	False Outcome = iota
	True
	Indeterminate
)

func (o Outcome) String() string {
	switch o {
	case False:
		return "FALSE"
	case True:
		return "TRUE"
	case Indeterminate:
		return "INDETERMINATE"
	default:
		return "UNKNOWN"
	}
}

// OutcomeOf lifts a classical boolean into an Outcome.
func OutcomeOf(b bool) Outcome {
	if b {
		return True
	}
	return False
}

// And combines outcomes with conjunction: FALSE dominates, then INDETERMINATE.
// An empty conjunction is TRUE.
func And(outcomes ...Outcome) Outcome {
	result := True
	for _, o := range outcomes {
		switch o {
		case False:
			return False
		case Indeterminate:
			result = Indeterminate
		}
	}
	return result
}

// Or combines outcomes with disjunction: TRUE dominates, then INDETERMINATE.
// An empty disjunction is FALSE.
func Or(outcomes ...Outcome) Outcome {
	result := False
	for _, o := range outcomes {
		switch o {
		case True:
			return True
		case Indeterminate:
			result = Indeterminate
		}
	}
	return result
}

// Not negates an outcome.  Negation never resolves INDETERMINATE.
func Not(o Outcome) Outcome {
	switch o {
	case True:
		return False
	case False:
		return True
	default:
		return Indeterminate
	}
}
