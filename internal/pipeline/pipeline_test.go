package pipeline_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/johnwards/stagetrack/internal/domain"
	"github.com/johnwards/stagetrack/internal/pipeline"
)

func record(stage domain.Stage, status string, fields map[string]any) *domain.Record {
	if fields == nil {
		fields = map[string]any{}
	}
	return &domain.Record{ID: 1, Stage: stage, Status: status, Fields: fields}
}

func mustLookup(t *testing.T, target domain.Stage) *pipeline.Transition {
	t.Helper()
	tr, err := pipeline.Lookup(target)
	if err != nil {
		t.Fatalf("Lookup(%s): %v", target, err)
	}
	return tr
}

func TestLookup_UnknownTransition(t *testing.T) {
	if _, err := pipeline.Lookup(domain.StageConsultation); !errors.Is(err, domain.ErrUnknownTransition) {
		t.Errorf("expected ErrUnknownTransition, got %v", err)
	}
	if _, err := pipeline.Lookup("warehouse"); !errors.Is(err, domain.ErrUnknownStage) {
		t.Errorf("expected ErrUnknownStage, got %v", err)
	}
}

func TestParseStage(t *testing.T) {
	for _, name := range []string{"contracts", "contract"} {
		got, err := pipeline.ParseStage(name)
		if err != nil {
			t.Fatalf("ParseStage(%q): %v", name, err)
		}
		if got != domain.StageContract {
			t.Errorf("ParseStage(%q) = %q, want contract", name, got)
		}
	}
	if _, err := pipeline.ParseStage("deals"); err == nil {
		t.Error("expected error for unknown stage")
	}
}

func TestCheck_ConsultationToContract(t *testing.T) {
	tr := mustLookup(t, domain.StageContract)

	tests := []struct {
		name     string
		rec      *domain.Record
		allowed  bool
		wantErr  error
		category string
	}{
		{"completed", record(domain.StageConsultation, domain.StatusCompleted, nil), true, nil, pipeline.CategoryCompleted},
		{"waiting", record(domain.StageConsultation, domain.StatusWaiting, nil), false, domain.ErrNotEligible, ""},
		{"cancelled", record(domain.StageConsultation, domain.StatusCancelled, nil), false, domain.ErrNotEligible, ""},
		{"already migrated", func() *domain.Record {
			r := record(domain.StageConsultation, domain.StatusCompleted, nil)
			r.Migrated = true
			return r
		}(), false, domain.ErrAlreadyMigrated, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := tr.Check(tt.rec)
			if g.Allowed != tt.allowed {
				t.Fatalf("Allowed = %v, want %v (reason %q)", g.Allowed, tt.allowed, g.Reason)
			}
			if tt.wantErr != nil && !errors.Is(g.Err(), tt.wantErr) {
				t.Errorf("Err() = %v, want %v", g.Err(), tt.wantErr)
			}
			if tt.allowed && g.Err() != nil {
				t.Errorf("Err() = %v, want nil", g.Err())
			}
			if g.Category != tt.category {
				t.Errorf("Category = %q, want %q", g.Category, tt.category)
			}
		})
	}
}

func TestCheck_ContractToInstallationUnion(t *testing.T) {
	tr := mustLookup(t, domain.StageInstallation)

	tests := []struct {
		name     string
		status   string
		pre      bool
		allowed  bool
		category string
	}{
		{"completed", domain.StatusCompleted, false, true, pipeline.CategoryCompleted},
		{"completed and pre-installation", domain.StatusCompleted, true, true, pipeline.CategoryCompleted},
		{"waiting with pre-installation", domain.StatusWaiting, true, true, pipeline.CategoryPreInstallation},
		{"signature pending with pre-installation", domain.StatusSignaturePending, true, true, pipeline.CategoryPreInstallation},
		{"waiting", domain.StatusWaiting, false, false, ""},
		{"cancelled with pre-installation", domain.StatusCancelled, true, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := record(domain.StageContract, tt.status, map[string]any{"pre_installation": tt.pre})
			g := tr.Check(rec)
			if g.Allowed != tt.allowed {
				t.Fatalf("Allowed = %v, want %v (reason %q)", g.Allowed, tt.allowed, g.Reason)
			}
			if g.Category != tt.category {
				t.Errorf("Category = %q, want %q", g.Category, tt.category)
			}
		})
	}
}

func TestMap_ContractCompletedIsInverseOfPreInstallation(t *testing.T) {
	tr := mustLookup(t, domain.StageInstallation)
	dst := pipeline.MustSchema(domain.StageInstallation)

	for _, pre := range []bool{true, false} {
		src := record(domain.StageContract, domain.StatusWaiting, map[string]any{
			"customer_name":    "Kim",
			"pre_installation": pre,
		})
		out := tr.Map(src, dst)
		if got := out["contract_completed"]; got != !pre {
			t.Errorf("pre_installation=%v: contract_completed = %v, want %v", pre, got, !pre)
		}
	}
}

func TestMap_DefaultsMissingFields(t *testing.T) {
	tr := mustLookup(t, domain.StageOperation)
	dst := pipeline.MustSchema(domain.StageOperation)

	src := record(domain.StageInstallation, domain.StatusCompleted, map[string]any{
		"customer_name": "Lee",
		"install_date":  "2024-05-01",
		"kiosk_count":   int64(3),
		"camera_count":  nil,
	})
	out := tr.Map(src, dst)

	if len(out) != len(dst.Fields) {
		t.Errorf("expected %d fields, got %d", len(dst.Fields), len(out))
	}
	want := map[string]any{
		"customer_name":          "Lee",
		"phone":                  "",
		"region":                 "",
		"install_address":        "",
		"open_date":              "2024-05-01",
		"kiosk_count":            int64(3),
		"terminal_count":         int64(0),
		"camera_count":           int64(0),
		"door_lock_count":        int64(0),
		"sensor_count":           int64(0),
		"contract_completed":     false,
		"install_cert_received":  false,
		"install_photo_received": false,
		"drive_uploaded":         false,
		"notes":                  "",
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("mapped payload mismatch (-want +got):\n%s", diff)
	}
}

func TestMap_DecimalCopied(t *testing.T) {
	tr := mustLookup(t, domain.StageInstallation)
	dst := pipeline.MustSchema(domain.StageInstallation)

	src := record(domain.StageContract, domain.StatusCompleted, map[string]any{
		"contract_amount": decimal.RequireFromString("1250000.50"),
	})
	out := tr.Map(src, dst)
	got, ok := out["contract_amount"].(decimal.Decimal)
	if !ok {
		t.Fatalf("contract_amount is %T, want decimal.Decimal", out["contract_amount"])
	}
	if got.String() != "1250000.5" {
		t.Errorf("contract_amount = %s, want 1250000.5", got)
	}
}

func TestTransitions_MappingsReferenceDeclaredFields(t *testing.T) {
	for _, tr := range pipeline.Transitions() {
		src := pipeline.MustSchema(tr.From)
		dst := pipeline.MustSchema(tr.To)
		if src.FlagColumn == "" {
			t.Errorf("%s: source stage has no migration flag", tr.Name())
		}
		if dst.LineageColumn == "" {
			t.Errorf("%s: destination stage has no lineage column", tr.Name())
		}
		for _, m := range tr.Fields {
			if _, ok := src.Field(m.From); !ok {
				t.Errorf("%s: source field %q not declared", tr.Name(), m.From)
			}
			if _, ok := dst.Field(m.To); !ok {
				t.Errorf("%s: destination field %q not declared", tr.Name(), m.To)
			}
		}
	}
}

func TestDeriveStatus_Checklist(t *testing.T) {
	s := pipeline.MustSchema(domain.StageOperation)

	tests := []struct {
		fields map[string]any
		want   string
	}{
		{map[string]any{}, domain.StatusContractPending},
		{map[string]any{"contract_completed": true}, domain.StatusInstallCertPending},
		{map[string]any{"contract_completed": true, "install_cert_received": true}, domain.StatusInstallPhotoPending},
		{map[string]any{"contract_completed": true, "install_cert_received": true, "install_photo_received": true}, domain.StatusDriveUploadPending},
		{map[string]any{"contract_completed": true, "install_cert_received": true, "install_photo_received": true, "drive_uploaded": true}, domain.StatusCompleted},
	}
	for _, tt := range tests {
		if got := s.DeriveStatus(tt.fields); got != tt.want {
			t.Errorf("DeriveStatus(%v) = %q, want %q", tt.fields, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	s := pipeline.MustSchema(domain.StageContract)

	out, err := s.Normalize(map[string]any{
		"customer_name":    "Park",
		"contract_amount":  "300000",
		"pre_installation": true,
	})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if d, ok := out["contract_amount"].(decimal.Decimal); !ok || !d.Equal(decimal.NewFromInt(300000)) {
		t.Errorf("contract_amount = %v", out["contract_amount"])
	}

	if _, err := s.Normalize(map[string]any{"kiosk_count": 2}); !errors.Is(err, domain.ErrInvalidField) {
		t.Errorf("expected ErrInvalidField for undeclared field, got %v", err)
	}
	if _, err := s.Normalize(map[string]any{"pre_installation": "maybe"}); !errors.Is(err, domain.ErrInvalidField) {
		t.Errorf("expected ErrInvalidField for bad bool, got %v", err)
	}
}
