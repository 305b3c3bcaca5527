package storage

import (
	"encoding/json"
	"errors"
	"testing"

	"dfl-stack/internal/models"

	"github.com/google/go-cmp/cmp"
)

func newTestLoop(t *testing.T) (*ClosedLoop, *Manager, *FileKV) {
	t.Helper()
	kv, err := NewFileKV(t.TempDir(), "state.json")
	if err != nil {
		t.Fatalf("NewFileKV() error = %v", err)
	}
	mgr := NewManager(kv, 5)
	return NewClosedLoop(mgr, kv), mgr, kv
}

func TestSetStateRefusesEmpty(t *testing.T) {
	loop, _, kv := newTestLoop(t)

	if err := loop.SetState("yppPlan", map[string]any{"schedule": []any{"a"}}, "seed"); err != nil {
		t.Fatalf("SetState() error = %v", err)
	}
	before, _ := kv.Get("yppPlan")

	var nilPlan *models.Plan
	for _, v := range []any{nil, nilPlan, json.RawMessage("null"), map[string]any{}, []any{}, ""} {
		if err := loop.SetState("yppPlan", v, "bad scrape"); !errors.Is(err, ErrNilValue) {
			t.Errorf("SetState(%#v) error = %v, want ErrNilValue", v, err)
		}
	}

	after, _ := kv.Get("yppPlan")
	if string(before) != string(after) {
		t.Errorf("fallback changed from %s to %s", before, after)
	}

	var got map[string]any
	if !loop.GetState("yppPlan", &got) {
		t.Fatal("GetState() = false after refused writes")
	}
	if diff := cmp.Diff(map[string]any{"schedule": []any{"a"}}, got); diff != "" {
		t.Errorf("state mismatch (-want +got):\n%s", diff)
	}
}

func TestSetStateDuplicatesPriorityKeys(t *testing.T) {
	loop, _, kv := newTestLoop(t)

	if err := loop.SetState("dfl_status", map[string]any{"runId": "r1"}, "run"); err != nil {
		t.Fatal(err)
	}
	if err := loop.SetState("dfl_metrics", map[string]any{"score": 10}, "run"); err != nil {
		t.Fatal(err)
	}

	if _, err := kv.Get("dfl_status"); err != nil {
		t.Errorf("priority key not duplicated: %v", err)
	}
	if _, err := kv.Get("dfl_metrics"); !errors.Is(err, ErrNotFound) {
		t.Errorf("non-priority key duplicated, err = %v", err)
	}
	if _, err := kv.Get(KeyPrefix + "dfl_metrics"); err != nil {
		t.Errorf("primary envelope missing: %v", err)
	}
}

func TestRoundTripWithoutPrimary(t *testing.T) {
	kv, err := NewFileKV(t.TempDir(), "state.json")
	if err != nil {
		t.Fatal(err)
	}
	loop := NewClosedLoop(nil, kv)

	plan := models.Plan{AlgorithmStage: "Rising", Schedule: []models.PlanItem{{ID: "1", Title: "A"}}, ItemCount: 1}
	if err := loop.SetState("yppPlan", plan, "generated"); err != nil {
		t.Fatalf("SetState() error = %v", err)
	}

	var got models.Plan
	if !loop.GetState("yppPlan", &got) {
		t.Fatal("GetState() = false")
	}
	if diff := cmp.Diff(plan, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestGetStateSurvivesClosedPrimary(t *testing.T) {
	loop, mgr, _ := newTestLoop(t)

	if err := loop.SetState("yppQueue", map[string]any{"schedule": []any{1, 2}}, "queue"); err != nil {
		t.Fatal(err)
	}
	mgr.Close()

	var got struct{ Schedule []int }
	if !loop.GetState("yppQueue", &got) {
		t.Fatal("GetState() = false with closed primary")
	}
	if len(got.Schedule) != 2 {
		t.Errorf("Schedule = %v", got.Schedule)
	}

	err := loop.SetState("yppQueue", map[string]any{"schedule": []any{3}}, "queue")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("SetState() with closed primary error = %v, want ErrUnavailable", err)
	}
	// The fallback copy was still refreshed.
	if !loop.GetState("yppQueue", &got) || len(got.Schedule) != 1 {
		t.Errorf("fallback not refreshed: %v", got.Schedule)
	}
}

func TestGetStateUnwrapsEnvelopes(t *testing.T) {
	kv, err := NewFileKV(t.TempDir(), "state.json")
	if err != nil {
		t.Fatal(err)
	}
	// A snapshot envelope left by an earlier run, and a stale plain copy
	// without a schedule.
	if err := kv.Put("yppPlan", []byte(`{"algorithmStage":"Stale"}`)); err != nil {
		t.Fatal(err)
	}
	envelope := `{"data":{"schedule":[{"title":"A"}]},"version":3,"timestamp":1,"checksum":"","source":"local"}`
	if err := kv.Put(KeyPrefix+"yppPlan", []byte(envelope)); err != nil {
		t.Fatal(err)
	}

	loop := NewClosedLoop(nil, kv)
	got := loop.GetRaw("yppPlan")
	if !LooksLikeSchedule(got) {
		t.Fatalf("GetRaw() = %s, want the unwrapped schedule", got)
	}
	if string(got) != `{"schedule":[{"title":"A"}]}` {
		t.Errorf("GetRaw() = %s", got)
	}
}

func TestGetStateFallsBackToFirstNonEmpty(t *testing.T) {
	kv, err := NewFileKV(t.TempDir(), "state.json")
	if err != nil {
		t.Fatal(err)
	}
	if err := kv.Put("yppPlan", []byte(`{"algorithmStage":"Seeding"}`)); err != nil {
		t.Fatal(err)
	}

	loop := NewClosedLoop(nil, kv)
	if got := string(loop.GetRaw("yppPlan")); got != `{"algorithmStage":"Seeding"}` {
		t.Errorf("GetRaw() = %s", got)
	}
	if got := loop.GetRaw("missing"); got != nil {
		t.Errorf("GetRaw(missing) = %s, want nil", got)
	}
}

func TestGetStatePrefersPrimary(t *testing.T) {
	loop, _, kv := newTestLoop(t)

	if err := kv.Put("dfl_status", []byte(`{"runId":"old"}`)); err != nil {
		t.Fatal(err)
	}
	if err := loop.SetState("dfl_status", map[string]any{"runId": "new"}, "run"); err != nil {
		t.Fatal(err)
	}

	var got struct{ RunID string `json:"runId"` }
	if !loop.GetState("dfl_status", &got) || got.RunID != "new" {
		t.Errorf("GetState() = %+v", got)
	}
}

func TestGetStateCustomPredicate(t *testing.T) {
	kv, err := NewFileKV(t.TempDir(), "state.json")
	if err != nil {
		t.Fatal(err)
	}
	hasID := func(v json.RawMessage) bool {
		var obj map[string]any
		return json.Unmarshal(v, &obj) == nil && obj["id"] != nil
	}
	loop := NewClosedLoop(nil, kv, WithPredicate("thing", hasID), WithPriorityKeys("thing"))

	if err := kv.Put("thing", []byte(`{"name":"no id"}`)); err != nil {
		t.Fatal(err)
	}
	if err := kv.Put(KeyPrefix+"thing", []byte(`{"data":{"id":7}}`)); err != nil {
		t.Fatal(err)
	}
	if got := string(loop.GetRaw("thing")); got != `{"id":7}` {
		t.Errorf("GetRaw() = %s", got)
	}
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		in       string
		notEmpty bool
		schedule bool
	}{
		{in: `null`},
		{in: `{}`},
		{in: `[]`},
		{in: `""`},
		{in: ` `},
		{in: `0`, notEmpty: true},
		{in: `false`, notEmpty: true},
		{in: `{"schedule":[]}`, notEmpty: true},
		{in: `{"schedule":null}`, notEmpty: true},
		{in: `{"schedule":[{}]}`, notEmpty: true, schedule: true},
		{in: `[1]`, notEmpty: true},
	}

	for _, tt := range tests {
		v := json.RawMessage(tt.in)
		if got := NotEmpty(v); got != tt.notEmpty {
			t.Errorf("NotEmpty(%s) = %v, want %v", tt.in, got, tt.notEmpty)
		}
		if got := LooksLikeSchedule(v); got != tt.schedule {
			t.Errorf("LooksLikeSchedule(%s) = %v, want %v", tt.in, got, tt.schedule)
		}
	}
}

func TestRollbackRefreshesFallbackCopy(t *testing.T) {
	loop, mgr, kv := newTestLoop(t)

	for _, topic := range []string{"good", "bad"} {
		plan := map[string]any{"schedule": []any{topic}}
		if err := loop.SetState("yppPlan", plan, "plan "+topic); err != nil {
			t.Fatal(err)
		}
	}

	snap, err := loop.Rollback("yppPlan", 0)
	if err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}
	if snap.Version != 1 {
		t.Errorf("Rollback() version = %d, want 1", snap.Version)
	}

	plain, err := kv.Get("yppPlan")
	if err != nil {
		t.Fatal(err)
	}
	if string(plain) != `{"schedule":["good"]}` {
		t.Errorf("fallback copy = %s, want the restored plan", plain)
	}

	mgr.Close()
	var got struct{ Schedule []string }
	if !loop.GetState("yppPlan", &got) {
		t.Fatal("GetState() = false with closed primary")
	}
	if diff := cmp.Diff([]string{"good"}, got.Schedule); diff != "" {
		t.Errorf("recovered plan after rollback (-want +got):\n%s", diff)
	}
}

func TestRollbackWithoutVersionedPrimary(t *testing.T) {
	kv, err := NewFileKV(t.TempDir(), "state.json")
	if err != nil {
		t.Fatal(err)
	}
	loop := NewClosedLoop(kv, kv)

	if _, err := loop.Rollback("yppPlan", 0); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Rollback() error = %v, want ErrUnavailable", err)
	}
}
