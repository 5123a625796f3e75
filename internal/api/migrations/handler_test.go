package migrations_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/johnwards/stagetrack/internal/api"
	"github.com/johnwards/stagetrack/internal/api/migrations"
	"github.com/johnwards/stagetrack/internal/domain"
	"github.com/johnwards/stagetrack/internal/migration"
	"github.com/johnwards/stagetrack/internal/store"
	"github.com/johnwards/stagetrack/internal/testhelpers"
)

func setupServer(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()
	s := store.New(testhelpers.NewMigratedDB(t))
	engine := migration.New(s.Records, s.Runs)

	mux := http.NewServeMux()
	migrations.RegisterRoutes(mux, s, engine)

	srv := httptest.NewServer(api.Chain(mux, api.RequestID(), api.Actor()))
	t.Cleanup(srv.Close)
	return srv, s
}

func insert(t *testing.T, s *store.Store, stage domain.Stage, status string, fields map[string]any) int64 {
	t.Helper()
	if fields == nil {
		fields = map[string]any{}
	}
	fields["customer_name"] = "Customer"
	rec, err := s.Records.Insert(context.Background(), &domain.Record{Stage: stage, Status: status, Fields: fields})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	return rec.ID
}

type migrateResponse struct {
	Success      bool     `json:"success"`
	Error        string   `json:"error"`
	RunID        int64    `json:"runId"`
	SuccessCount int      `json:"successCount"`
	ErrorCount   int      `json:"errorCount"`
	Errors       []string `json:"errors"`
}

func migrate(t *testing.T, srv *httptest.Server, target, body string) (int, migrateResponse) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/"+target+"/migrate", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set(api.ActorHeader, "5")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var out migrateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.StatusCode, out
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.StatusCode
}

func TestMigrateEndpoint(t *testing.T) {
	srv, s := setupServer(t)
	id := insert(t, s, domain.StageConsultation, domain.StatusCompleted, nil)

	code, out := migrate(t, srv, "contracts", `{"consultation_ids":[`+itoa(id)+`, 99]}`)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !out.Success || out.SuccessCount != 1 || out.ErrorCount != 1 {
		t.Errorf("unexpected response %+v", out)
	}
	if len(out.Errors) != 1 || !strings.Contains(out.Errors[0], "99") {
		t.Errorf("expected one error naming 99, got %v", out.Errors)
	}
	if out.RunID == 0 {
		t.Error("expected a run id")
	}

	code, out = migrate(t, srv, "contracts", `{"consultation_ids":[`+itoa(id)+`]}`)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 on total failure, got %d", code)
	}
	if out.Success || out.SuccessCount != 0 || out.ErrorCount != 1 || out.Error == "" {
		t.Errorf("unexpected response %+v", out)
	}
	if !strings.Contains(out.Errors[0], "already migrated") {
		t.Errorf("expected already migrated, got %v", out.Errors)
	}

	rec, err := s.Records.FindByLineage(context.Background(), domain.StageContract, id)
	if err != nil {
		t.Fatalf("FindByLineage: %v", err)
	}
	if rec.CreatedBy != 5 {
		t.Errorf("expected created_by 5 from the actor header, got %d", rec.CreatedBy)
	}
}

func TestMigrateEndpoint_BadRequests(t *testing.T) {
	srv, _ := setupServer(t)

	tests := []struct {
		name   string
		target string
		body   string
		code   int
	}{
		{"empty list", "contracts", `{"consultation_ids":[]}`, http.StatusBadRequest},
		{"wrong key", "installations", `{"consultation_ids":[1]}`, http.StatusBadRequest},
		{"not integers", "contracts", `{"consultation_ids":["a"]}`, http.StatusBadRequest},
		{"malformed", "contracts", `{`, http.StatusBadRequest},
		{"first stage", "consultations", `{"ids":[1]}`, http.StatusBadRequest},
		{"unknown stage", "deals", `{}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/v1/"+tt.target+"/migrate", "application/json", bytes.NewBufferString(tt.body))
			if err != nil {
				t.Fatalf("post: %v", err)
			}
			defer func() { _ = resp.Body.Close() }()
			if resp.StatusCode != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, resp.StatusCode)
			}
			var e api.Error
			if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if e.Category == "" {
				t.Error("expected an error envelope")
			}
		})
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv, s := setupServer(t)
	completed := insert(t, s, domain.StageContract, domain.StatusCompleted, nil)
	fast := insert(t, s, domain.StageContract, domain.StatusWaiting, map[string]any{"pre_installation": true})
	insert(t, s, domain.StageContract, domain.StatusWaiting, nil)
	insert(t, s, domain.StageContract, domain.StatusCancelled, map[string]any{"pre_installation": true})

	var stats map[string]any
	if code := getJSON(t, srv.URL+"/api/v1/installations/migrate/stats", &stats); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	want := map[string]any{
		"count":                float64(2),
		"ids":                  []any{float64(completed), float64(fast)},
		"completedCount":       float64(1),
		"preInstallationCount": float64(1),
	}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}

	// Stats ids migrate cleanly.
	code, out := migrate(t, srv, "installations", `{"contract_ids":[`+itoa(completed)+`,`+itoa(fast)+`]}`)
	if code != http.StatusOK || out.SuccessCount != 2 {
		t.Errorf("expected both stats ids to migrate, got %d %+v", code, out)
	}

	stats = nil
	getJSON(t, srv.URL+"/api/v1/installations/migrate/stats", &stats)
	if stats["count"] != float64(0) {
		t.Errorf("expected nothing left, got %v", stats)
	}
	if ids, ok := stats["ids"].([]any); !ok || len(ids) != 0 {
		t.Errorf("expected empty ids array, got %#v", stats["ids"])
	}
}

func TestRunsEndpoint(t *testing.T) {
	srv, s := setupServer(t)
	c := insert(t, s, domain.StageConsultation, domain.StatusCompleted, nil)
	i := insert(t, s, domain.StageInstallation, domain.StatusCompleted, nil)

	migrate(t, srv, "contracts", `{"consultation_ids":[`+itoa(c)+`]}`)
	migrate(t, srv, "operations", `{"installation_ids":[`+itoa(i)+`, 404]}`)

	var all struct {
		Results []domain.MigrationRun `json:"results"`
	}
	if code := getJSON(t, srv.URL+"/api/v1/migration-runs", &all); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(all.Results) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(all.Results))
	}
	latest := all.Results[0]
	if latest.To != domain.StageOperation || latest.ActorID != 5 || len(latest.Items) != 2 {
		t.Errorf("unexpected latest run %+v", latest)
	}
	if latest.Items[1].OK || latest.Items[1].Reason == "" {
		t.Errorf("expected failed item with reason, got %+v", latest.Items[1])
	}

	var filtered struct {
		Results []domain.MigrationRun `json:"results"`
	}
	getJSON(t, srv.URL+"/api/v1/migration-runs?target=contracts", &filtered)
	if len(filtered.Results) != 1 || filtered.Results[0].To != domain.StageContract {
		t.Errorf("unexpected filtered runs %+v", filtered.Results)
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
