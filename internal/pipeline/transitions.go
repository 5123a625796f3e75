package pipeline

import (
	"fmt"

	"github.com/johnwards/stagetrack/internal/domain"
)

// Breakdown categories reported by the stats query.
const (
	CategoryCompleted       = "completed"
	CategoryPreInstallation = "preInstallation"
)

// Guard is the outcome of evaluating a transition's eligibility rule.
type Guard struct {
	Allowed  bool
	Reason   string
	Category string
	cause    error
}

// Err converts a refused guard into an error wrapping ErrAlreadyMigrated or
// ErrNotEligible. It returns nil when the guard allowed the record.
func (g Guard) Err() error {
	if g.Allowed {
		return nil
	}
	if g.Reason == "" {
		return g.cause
	}
	return fmt.Errorf("%w: %s", g.cause, g.Reason)
}

func allow(category string) Guard {
	return Guard{Allowed: true, Category: category}
}

func refuse(format string, args ...any) Guard {
	return Guard{Reason: fmt.Sprintf(format, args...), cause: domain.ErrNotEligible}
}

// FieldMap copies one source field into one destination field.
type FieldMap struct {
	From string
	To   string
}

func same(names ...string) []FieldMap {
	out := make([]FieldMap, len(names))
	for i, n := range names {
		out[i] = FieldMap{From: n, To: n}
	}
	return out
}

// Transition declares how records move from one stage to the next.
type Transition struct {
	From domain.Stage
	To   domain.Stage
	// Auto transitions run as soon as the source becomes eligible rather
	// than waiting for a batch request.
	Auto bool
	// Categories lists the breakdown keys Eligible can assign. They are
	// mutually exclusive, so their counts sum to the eligible total.
	Categories []string
	// Eligible holds the stage-specific status rule. The migrated flag and
	// the cancelled status are checked by Check before it runs.
	Eligible func(rec *domain.Record) Guard
	Fields   []FieldMap
	// Derive computes destination fields that are not straight copies.
	Derive func(src *domain.Record) map[string]any
}

// IDsKey is the request body key carrying source ids, e.g. "consultation_ids".
func (t *Transition) IDsKey() string {
	return string(t.From) + "_ids"
}

// Name returns "from->to".
func (t *Transition) Name() string {
	return string(t.From) + "->" + string(t.To)
}

// Check evaluates the full eligibility predicate for rec. Both the stats
// query and the migration engine go through here.
func (t *Transition) Check(rec *domain.Record) Guard {
	if rec.Migrated {
		return Guard{cause: domain.ErrAlreadyMigrated}
	}
	if rec.Status == domain.StatusCancelled {
		return refuse("%s %d is cancelled", rec.Stage, rec.ID)
	}
	return t.Eligible(rec)
}

// Map builds the destination payload for src. Every destination field is
// present in the result; unmapped or unusable source values take the
// destination kind's zero.
func (t *Transition) Map(src *domain.Record, dst *Schema) map[string]any {
	out := dst.Defaults()
	for _, m := range t.Fields {
		f, ok := dst.Field(m.To)
		if !ok {
			continue
		}
		v, err := f.Kind.Coerce(src.Fields[m.From])
		if err != nil {
			v = f.Kind.Zero()
		}
		out[m.To] = v
	}
	if t.Derive != nil {
		for k, v := range t.Derive(src) {
			out[k] = v
		}
	}
	return out
}

func requireCompleted(rec *domain.Record) Guard {
	if rec.Status != domain.StatusCompleted {
		return refuse("status is %q, want %q", rec.Status, domain.StatusCompleted)
	}
	return allow(CategoryCompleted)
}

var transitions = []*Transition{
	{
		From:       domain.StageConsultation,
		To:         domain.StageContract,
		Categories: []string{CategoryCompleted},
		Eligible:   requireCompleted,
		Fields:     same("customer_name", "phone", "inflow_source", "region", "business_type", "notes"),
	},
	{
		From:       domain.StageContract,
		To:         domain.StageInstallation,
		Categories: []string{CategoryCompleted, CategoryPreInstallation},
		Eligible: func(rec *domain.Record) Guard {
			switch {
			case rec.Status == domain.StatusCompleted:
				return allow(CategoryCompleted)
			case rec.Bool("pre_installation"):
				return allow(CategoryPreInstallation)
			}
			return refuse("status is %q and pre_installation is not set", rec.Status)
		},
		Fields: same("customer_name", "phone", "inflow_source", "region", "contract_amount", "notes"),
		Derive: func(src *domain.Record) map[string]any {
			// A fast-tracked contract is not final yet; the operation
			// checklist keeps the item open until it is.
			return map[string]any{"contract_completed": !src.Bool("pre_installation")}
		},
	},
	{
		From:       domain.StageInstallation,
		To:         domain.StageOperation,
		Categories: []string{CategoryCompleted},
		Eligible:   requireCompleted,
		Fields: append(same(
			"customer_name", "phone", "region", "install_address", "notes",
			"kiosk_count", "terminal_count", "camera_count", "door_lock_count", "sensor_count",
			"contract_completed",
		), FieldMap{From: "install_date", To: "open_date"}),
	},
	{
		From:       domain.StageOperation,
		To:         domain.StageFranchise,
		Auto:       true,
		Categories: []string{CategoryCompleted},
		Eligible:   requireCompleted,
		Fields:     same("customer_name", "phone", "region", "install_address", "open_date", "notes"),
	},
}

// Lookup returns the transition that produces records in target.
func Lookup(target domain.Stage) (*Transition, error) {
	for _, t := range transitions {
		if t.To == target {
			return t, nil
		}
	}
	if _, err := SchemaFor(target); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnknownTransition, target)
}

// Next returns the transition leaving source, if any.
func Next(source domain.Stage) (*Transition, bool) {
	for _, t := range transitions {
		if t.From == source {
			return t, true
		}
	}
	return nil, false
}

// Transitions returns every transition in pipeline order.
func Transitions() []*Transition {
	return transitions
}
