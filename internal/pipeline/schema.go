// Package pipeline declares the stage registry: the per-stage table schemas
// and the transitions that move a record from one stage to the next.
// Everything here is static metadata and pure functions.
package pipeline

import (
	"fmt"
	"slices"

	"github.com/johnwards/stagetrack/internal/domain"
)

// ChecklistItem maps a checklist boolean to the status a record holds while
// that item is still outstanding.
type ChecklistItem struct {
	Field         string
	PendingStatus string
}

// Schema describes one stage table.
type Schema struct {
	Stage         domain.Stage
	Table         string
	Path          string // URL segment, e.g. "consultations"
	Statuses      []string
	InitialStatus string
	// LineageColumn names the back-reference to the upstream record. Empty
	// for the first stage.
	LineageColumn string
	// FlagColumn names the forward migration flag. Empty for the last stage.
	// The timestamp column is FlagColumn + "_at".
	FlagColumn string
	Fields     []domain.Field
	// Checklist, when set, drives the status: the first unchecked item's
	// pending status, or completed when every item is checked.
	Checklist []ChecklistItem
}

// FlagAtColumn returns the migration timestamp column.
func (s *Schema) FlagAtColumn() string {
	if s.FlagColumn == "" {
		return ""
	}
	return s.FlagColumn + "_at"
}

// Field returns the named payload field.
func (s *Schema) Field(name string) (domain.Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return domain.Field{}, false
}

// ValidStatus reports whether status belongs to this stage.
func (s *Schema) ValidStatus(status string) bool {
	return slices.Contains(s.Statuses, status)
}

// Defaults returns a payload with every field set to its kind's zero.
func (s *Schema) Defaults() map[string]any {
	out := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		out[f.Name] = f.Kind.Zero()
	}
	return out
}

// Normalize coerces every value of in to its declared kind. Unknown field
// names are rejected.
func (s *Schema) Normalize(in map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(in))
	for name, v := range in {
		f, ok := s.Field(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no field %q", domain.ErrInvalidField, s.Stage, name)
		}
		cv, err := f.Kind.Coerce(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		out[name] = cv
	}
	return out, nil
}

// InitialStatusFor returns the status a new record starts in. Checklist
// stages derive it from the payload.
func (s *Schema) InitialStatusFor(fields map[string]any) string {
	if len(s.Checklist) > 0 {
		return s.DeriveStatus(fields)
	}
	return s.InitialStatus
}

// DeriveStatus evaluates the checklist against fields.
func (s *Schema) DeriveStatus(fields map[string]any) string {
	for _, item := range s.Checklist {
		if done, _ := fields[item.Field].(bool); !done {
			return item.PendingStatus
		}
	}
	return domain.StatusCompleted
}

var hardwareFields = []domain.Field{
	{Name: "kiosk_count", Kind: domain.KindInt},
	{Name: "terminal_count", Kind: domain.KindInt},
	{Name: "camera_count", Kind: domain.KindInt},
	{Name: "door_lock_count", Kind: domain.KindInt},
	{Name: "sensor_count", Kind: domain.KindInt},
}

var schemas = []*Schema{
	{
		Stage: domain.StageConsultation,
		Table: "consultations",
		Path:  "consultations",
		Statuses: []string{
			domain.StatusWaiting, domain.StatusInProgress, domain.StatusHold,
			domain.StatusCompleted, domain.StatusCancelled,
		},
		InitialStatus: domain.StatusWaiting,
		FlagColumn:    "migrated_to_contract",
		Fields: []domain.Field{
			{Name: "customer_name", Kind: domain.KindText, Required: true},
			{Name: "phone", Kind: domain.KindText},
			{Name: "inflow_source", Kind: domain.KindText},
			{Name: "region", Kind: domain.KindText},
			{Name: "business_type", Kind: domain.KindText},
			{Name: "consult_date", Kind: domain.KindText},
			{Name: "notes", Kind: domain.KindText},
		},
	},
	{
		Stage: domain.StageContract,
		Table: "contracts",
		Path:  "contracts",
		Statuses: []string{
			domain.StatusWaiting, domain.StatusInProgress, domain.StatusSignaturePending,
			domain.StatusHold, domain.StatusCompleted, domain.StatusCancelled,
		},
		InitialStatus: domain.StatusWaiting,
		LineageColumn: "consultation_id",
		FlagColumn:    "migrated_to_installation",
		Fields: []domain.Field{
			{Name: "customer_name", Kind: domain.KindText, Required: true},
			{Name: "phone", Kind: domain.KindText},
			{Name: "inflow_source", Kind: domain.KindText},
			{Name: "region", Kind: domain.KindText},
			{Name: "business_type", Kind: domain.KindText},
			{Name: "contract_date", Kind: domain.KindText},
			{Name: "contract_amount", Kind: domain.KindDecimal},
			{Name: "deposit_amount", Kind: domain.KindDecimal},
			{Name: "monthly_fee", Kind: domain.KindDecimal},
			{Name: "pre_installation", Kind: domain.KindBool},
			{Name: "notes", Kind: domain.KindText},
		},
	},
	{
		Stage: domain.StageInstallation,
		Table: "installations",
		Path:  "installations",
		Statuses: []string{
			domain.StatusWaiting, domain.StatusInProgress, domain.StatusHold,
			domain.StatusCompleted, domain.StatusCancelled,
		},
		InitialStatus: domain.StatusWaiting,
		LineageColumn: "contract_id",
		FlagColumn:    "migrated_to_operation",
		Fields: slices.Concat([]domain.Field{
			{Name: "customer_name", Kind: domain.KindText, Required: true},
			{Name: "phone", Kind: domain.KindText},
			{Name: "inflow_source", Kind: domain.KindText},
			{Name: "region", Kind: domain.KindText},
			{Name: "install_address", Kind: domain.KindText},
			{Name: "install_date", Kind: domain.KindText},
			{Name: "contract_amount", Kind: domain.KindDecimal},
			{Name: "contract_completed", Kind: domain.KindBool},
		}, hardwareFields, []domain.Field{
			{Name: "notes", Kind: domain.KindText},
		}),
	},
	{
		Stage: domain.StageOperation,
		Table: "operations",
		Path:  "operations",
		Statuses: []string{
			domain.StatusContractPending, domain.StatusInstallCertPending,
			domain.StatusInstallPhotoPending, domain.StatusDriveUploadPending,
			domain.StatusCompleted, domain.StatusCancelled,
		},
		InitialStatus: domain.StatusContractPending,
		LineageColumn: "installation_id",
		FlagColumn:    "migrated_to_franchise",
		Fields: slices.Concat([]domain.Field{
			{Name: "customer_name", Kind: domain.KindText, Required: true},
			{Name: "phone", Kind: domain.KindText},
			{Name: "region", Kind: domain.KindText},
			{Name: "install_address", Kind: domain.KindText},
			{Name: "open_date", Kind: domain.KindText},
		}, hardwareFields, []domain.Field{
			{Name: "contract_completed", Kind: domain.KindBool},
			{Name: "install_cert_received", Kind: domain.KindBool},
			{Name: "install_photo_received", Kind: domain.KindBool},
			{Name: "drive_uploaded", Kind: domain.KindBool},
			{Name: "notes", Kind: domain.KindText},
		}),
		Checklist: []ChecklistItem{
			{Field: "contract_completed", PendingStatus: domain.StatusContractPending},
			{Field: "install_cert_received", PendingStatus: domain.StatusInstallCertPending},
			{Field: "install_photo_received", PendingStatus: domain.StatusInstallPhotoPending},
			{Field: "drive_uploaded", PendingStatus: domain.StatusDriveUploadPending},
		},
	},
	{
		Stage:         domain.StageFranchise,
		Table:         "franchises",
		Path:          "franchises",
		Statuses:      []string{domain.StatusActive, domain.StatusSuspended, domain.StatusTerminated},
		InitialStatus: domain.StatusActive,
		LineageColumn: "operation_id",
		Fields: []domain.Field{
			{Name: "customer_name", Kind: domain.KindText, Required: true},
			{Name: "phone", Kind: domain.KindText},
			{Name: "region", Kind: domain.KindText},
			{Name: "install_address", Kind: domain.KindText},
			{Name: "open_date", Kind: domain.KindText},
			{Name: "monthly_fee", Kind: domain.KindDecimal},
			{Name: "notes", Kind: domain.KindText},
		},
	},
}

// SchemaFor returns the schema of a stage.
func SchemaFor(stage domain.Stage) (*Schema, error) {
	for _, s := range schemas {
		if s.Stage == stage {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownStage, stage)
}

// MustSchema is SchemaFor for stages known at compile time.
func MustSchema(stage domain.Stage) *Schema {
	s, err := SchemaFor(stage)
	if err != nil {
		panic(err)
	}
	return s
}

// ParseStage resolves a URL segment ("contracts") or a stage name
// ("contract") to a stage.
func ParseStage(name string) (domain.Stage, error) {
	for _, s := range schemas {
		if s.Path == name || string(s.Stage) == name {
			return s.Stage, nil
		}
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnknownStage, name)
}
