package cron

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// newTestService creates a Service backed by a temp file.
func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobs.json")
	return NewService(path), path
}

// startService starts the service in the background and returns a cancel func.
func startService(t *testing.T, s *Service) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = s.Start(ctx) }()
	// Give Start() a moment to arm timers.
	time.Sleep(20 * time.Millisecond)
	return cancel
}

func every(ms int64) Schedule { return Schedule{Kind: KindEvery, EveryMs: &ms} }

func at(t time.Time) Schedule {
	ms := t.UnixMilli()
	return Schedule{Kind: KindAt, AtMs: &ms}
}

func cronExpr(expr, tz string) Schedule {
	return Schedule{Kind: KindCron, Expr: &expr, TZ: &tz}
}

func addJob(t *testing.T, s *Service, name string, sched Schedule) Job {
	t.Helper()
	job, err := s.AddJob(JobSpec{Name: name, Schedule: sched, Payload: Payload{Query: "latest on " + name}})
	if err != nil {
		t.Fatalf("AddJob(%s): %v", name, err)
	}
	return job
}

// ─── AddJob ────────────────────────────────────────────────────────────────

func TestAddJob_Every(t *testing.T) {
	s, _ := newTestService(t)
	job := addJob(t, s, "tick", every(5000))
	if job.ID == "" {
		t.Fatal("expected non-empty id")
	}
	jobs := s.ListJobs(false)
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	if jobs[0].Schedule.EveryMs == nil || *jobs[0].Schedule.EveryMs != 5000 {
		t.Errorf("unexpected everyMs: %v", jobs[0].Schedule.EveryMs)
	}
	if jobs[0].State.NextRunAtMs == nil {
		t.Error("expected next run to be computed")
	}
}

func TestAddJob_CronWithDelivery(t *testing.T) {
	s, _ := newTestService(t)
	channel, to := "telegram", "123"
	job, err := s.AddJob(JobSpec{
		Name:     "daily",
		Schedule: cronExpr("0 9 * * *", "UTC"),
		Payload:  Payload{Query: "AI news", Deliver: true, Channel: &channel, To: &to},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !job.Payload.Deliver || *job.Payload.Channel != "telegram" {
		t.Errorf("unexpected payload: %+v", job.Payload)
	}
}

func TestAddJob_DefaultsNameToQuery(t *testing.T) {
	s, _ := newTestService(t)
	job, err := s.AddJob(JobSpec{Schedule: every(1000), Payload: Payload{Query: "vector databases"}})
	if err != nil {
		t.Fatal(err)
	}
	if job.Name != "vector databases" {
		t.Errorf("expected name from query, got %q", job.Name)
	}
}

func TestAddJob_Rejects(t *testing.T) {
	s, _ := newTestService(t)
	bad := "not a cron"
	badTZ := "Mars/Olympus"
	tests := []struct {
		name string
		spec JobSpec
	}{
		{"empty query", JobSpec{Schedule: every(1000)}},
		{"unknown kind", JobSpec{Schedule: Schedule{Kind: "weekly"}, Payload: Payload{Query: "q"}}},
		{"zero interval", JobSpec{Schedule: every(0), Payload: Payload{Query: "q"}}},
		{"bad expression", JobSpec{Schedule: Schedule{Kind: KindCron, Expr: &bad}, Payload: Payload{Query: "q"}}},
		{"bad timezone", JobSpec{Schedule: cronExpr("0 9 * * *", badTZ), Payload: Payload{Query: "q"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.AddJob(tt.spec); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	if n := len(s.ListJobs(true)); n != 0 {
		t.Errorf("rejected jobs were stored: %d", n)
	}
}

// ─── RemoveJob / EnableJob ─────────────────────────────────────────────────

func TestRemoveJob(t *testing.T) {
	s, _ := newTestService(t)
	job := addJob(t, s, "job", every(1000))
	if !s.RemoveJob(job.ID) {
		t.Fatal("expected RemoveJob to return true")
	}
	if s.RemoveJob(job.ID) {
		t.Fatal("expected second RemoveJob to return false")
	}
	if len(s.ListJobs(true)) != 0 {
		t.Error("expected empty job list after remove")
	}
}

func TestEnableJob_ToggleDisableEnable(t *testing.T) {
	s, _ := newTestService(t)
	job := addJob(t, s, "j", every(1000))

	got, ok := s.EnableJob(job.ID, false)
	if !ok || got.Enabled || got.State.NextRunAtMs != nil {
		t.Fatalf("unexpected disabled job: ok=%v %+v", ok, got)
	}
	if len(s.ListJobs(false)) != 0 || len(s.ListJobs(true)) != 1 {
		t.Error("disabled job visibility is wrong")
	}

	got, ok = s.EnableJob(job.ID, true)
	if !ok || !got.Enabled || got.State.NextRunAtMs == nil {
		t.Fatalf("unexpected enabled job: ok=%v %+v", ok, got)
	}
	if _, ok := s.EnableJob("ghost", true); ok {
		t.Error("expected ok=false for unknown id")
	}
}

func TestListJobs_SortedByNextRun(t *testing.T) {
	s, _ := newTestService(t)
	addJob(t, s, "slow", every(60000))
	addJob(t, s, "fast", every(1000))

	jobs := s.ListJobs(false)
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].Name != "fast" {
		t.Errorf("expected fast job first, got %q", jobs[0].Name)
	}
}

// ─── Persistence ───────────────────────────────────────────────────────────

func TestPersistence_RoundTrip(t *testing.T) {
	s, path := newTestService(t)
	job := addJob(t, s, "persist", every(5000))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read jobs.json: %v", err)
	}
	var store jobStore
	if err := json.Unmarshal(data, &store); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if store.Version != 1 {
		t.Errorf("unexpected version: %d", store.Version)
	}
	if len(store.Jobs) != 1 || store.Jobs[0].ID != job.ID {
		t.Fatalf("unexpected persisted jobs: %+v", store.Jobs)
	}
	if store.Jobs[0].Payload.Query != "latest on persist" {
		t.Errorf("query not persisted: %q", store.Jobs[0].Payload.Query)
	}
}

func TestPersistence_LoadExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	existing := `{"version":1,"jobs":[{"id":"aabbccdd","name":"loaded","enabled":true,
		"schedule":{"kind":"every","everyMs":3000},"payload":{"query":"hi","deliver":false},
		"state":{},"createdAtMs":1000,"updatedAtMs":1000,"deleteAfterRun":false}]}`
	if err := os.WriteFile(path, []byte(existing), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewService(path)
	addJob(t, s, "second", every(1000))
	jobs := s.ListJobs(false)
	if len(jobs) != 2 {
		t.Fatalf("expected existing job kept alongside new one, got %d", len(jobs))
	}
}

func TestPersistence_MissingFile(t *testing.T) {
	s, _ := newTestService(t)
	if jobs := s.ListJobs(true); len(jobs) != 0 {
		t.Fatalf("expected 0 jobs from missing file, got %d", len(jobs))
	}
}

// ─── computeNextRun ────────────────────────────────────────────────────────

func TestComputeNextRun(t *testing.T) {
	now := time.Now()
	if got := computeNextRun(every(5000), 1_000_000); got == nil || *got != 1_005_000 {
		t.Errorf("every: got %v", got)
	}
	future := now.Add(time.Hour)
	if got := computeNextRun(at(future), now.UnixMilli()); got == nil || *got != future.UnixMilli() {
		t.Errorf("at future: got %v", got)
	}
	if got := computeNextRun(at(now.Add(-time.Hour)), now.UnixMilli()); got != nil {
		t.Errorf("at past: expected nil, got %d", *got)
	}
	if got := computeNextRun(cronExpr("0 12 * * *", "UTC"), now.UnixMilli()); got == nil || *got <= now.UnixMilli() {
		t.Errorf("cron: expected future run, got %v", got)
	}
	bad := "not a cron"
	if got := computeNextRun(Schedule{Kind: KindCron, Expr: &bad}, now.UnixMilli()); got != nil {
		t.Error("expected nil for invalid cron expression")
	}
}

// ─── Execution ─────────────────────────────────────────────────────────────

func TestRunJob_RecordsReport(t *testing.T) {
	s, _ := newTestService(t)
	s.SetRunner(func(_ context.Context, job Job) (string, error) {
		return "/reports/" + job.ID + ".md", nil
	})
	job := addJob(t, s, "state", every(10000))

	if !s.RunJob(context.Background(), job.ID, false) {
		t.Fatal("RunJob returned false")
	}

	jobs := s.ListJobs(false)
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	st := jobs[0].State
	if st.LastRunAtMs == nil || st.LastStatus == nil || *st.LastStatus != "ok" {
		t.Errorf("unexpected state: %+v", st)
	}
	if st.LastReport == nil || *st.LastReport != "/reports/"+job.ID+".md" {
		t.Errorf("unexpected report path: %v", st.LastReport)
	}
}

func TestRunJob_RecordsError(t *testing.T) {
	s, _ := newTestService(t)
	s.SetRunner(func(context.Context, Job) (string, error) {
		return "", context.DeadlineExceeded
	})
	job := addJob(t, s, "failing", every(10000))
	s.RunJob(context.Background(), job.ID, false)

	st := s.ListJobs(false)[0].State
	if st.LastStatus == nil || *st.LastStatus != "error" || st.LastError == nil {
		t.Errorf("unexpected state: %+v", st)
	}
}

func TestRunJob_AtDeleteAfterRun(t *testing.T) {
	s, _ := newTestService(t)
	s.SetRunner(func(context.Context, Job) (string, error) { return "", nil })
	job, err := s.AddJob(JobSpec{
		Schedule:       at(time.Now().Add(time.Hour)),
		Payload:        Payload{Query: "once"},
		DeleteAfterRun: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	s.RunJob(context.Background(), job.ID, true)
	if jobs := s.ListJobs(true); len(jobs) != 0 {
		t.Errorf("expected job deleted after run, got %d jobs", len(jobs))
	}
}

func TestRunJob_DisabledWithoutForce(t *testing.T) {
	s, _ := newTestService(t)
	job := addJob(t, s, "j", every(10000))
	s.EnableJob(job.ID, false)

	if s.RunJob(context.Background(), job.ID, false) {
		t.Error("expected RunJob to return false for disabled job without force")
	}
	if s.RunJob(context.Background(), "ghost", true) {
		t.Error("expected RunJob to return false for unknown id")
	}
}

// ─── Timer firing ──────────────────────────────────────────────────────────

func TestEveryJob_FiresAfterInterval(t *testing.T) {
	s, _ := newTestService(t)
	var count atomic.Int32
	s.SetRunner(func(context.Context, Job) (string, error) {
		count.Add(1)
		return "", nil
	})

	addJob(t, s, "fast", every(50))
	cancel := startService(t, s)
	defer cancel()

	time.Sleep(250 * time.Millisecond)
	if n := count.Load(); n < 2 {
		t.Errorf("expected at least 2 executions, got %d", n)
	}
}

func TestAtJob_FiresOnce(t *testing.T) {
	s, _ := newTestService(t)
	var count atomic.Int32
	s.SetRunner(func(context.Context, Job) (string, error) {
		count.Add(1)
		return "", nil
	})

	addJob(t, s, "once", at(time.Now().Add(80*time.Millisecond)))
	cancel := startService(t, s)
	defer cancel()

	time.Sleep(300 * time.Millisecond)
	if n := count.Load(); n != 1 {
		t.Errorf("expected exactly 1 execution for at-job, got %d", n)
	}
}
