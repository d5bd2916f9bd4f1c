// Package cron runs research queries on a schedule.
//
// Jobs persist as JSON:
//
//	{ "version": 1, "jobs": [ { "id":"…", "name":"…", "enabled":true,
//	    "schedule":{"kind":"every","everyMs":…},
//	    "payload":{"query":"…","deliver":false},
//	    "state":{"nextRunAtMs":…,"lastRunAtMs":…,"lastStatus":"ok","lastReport":"…"},
//	    "createdAtMs":…, "updatedAtMs":…, "deleteAfterRun":false } ] }
package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	robfigcron "github.com/robfig/cron/v3"
)

const (
	KindEvery = "every"
	KindCron  = "cron"
	KindAt    = "at"
)

type Schedule struct {
	Kind    string  `json:"kind"`              // "every" | "cron" | "at"
	AtMs    *int64  `json:"atMs,omitempty"`    // one-time
	EveryMs *int64  `json:"everyMs,omitempty"` // interval
	Expr    *string `json:"expr,omitempty"`    // five-field cron expression
	TZ      *string `json:"tz,omitempty"`      // IANA timezone
}

// Payload is the research request a job runs.
type Payload struct {
	Query   string  `json:"query"`
	Deliver bool    `json:"deliver"` // send the answer to Channel/To as well
	Channel *string `json:"channel,omitempty"`
	To      *string `json:"to,omitempty"`
}

type JobState struct {
	NextRunAtMs *int64  `json:"nextRunAtMs,omitempty"`
	LastRunAtMs *int64  `json:"lastRunAtMs,omitempty"`
	LastStatus  *string `json:"lastStatus,omitempty"`
	LastError   *string `json:"lastError,omitempty"`
	LastReport  *string `json:"lastReport,omitempty"` // path of the last written report
}

type Job struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Enabled        bool     `json:"enabled"`
	Schedule       Schedule `json:"schedule"`
	Payload        Payload  `json:"payload"`
	State          JobState `json:"state"`
	CreatedAtMs    int64    `json:"createdAtMs"`
	UpdatedAtMs    int64    `json:"updatedAtMs"`
	DeleteAfterRun bool     `json:"deleteAfterRun"`
}

// JobSpec describes a job to add.
type JobSpec struct {
	Name           string
	Schedule       Schedule
	Payload        Payload
	DeleteAfterRun bool
}

type jobStore struct {
	Version int   `json:"version"`
	Jobs    []Job `json:"jobs"`
}

// RunFunc executes a job and returns the path of the report it wrote.
type RunFunc func(ctx context.Context, job Job) (string, error)

// Service manages scheduled research jobs.
type Service struct {
	storePath string
	run       RunFunc

	mu     sync.Mutex
	store  jobStore
	loaded bool

	timers    map[string]*time.Timer
	robfig    *robfigcron.Cron
	robfigIDs map[string]robfigcron.EntryID
}

// NewService creates a Service persisting to storePath
// (e.g. ~/.researchflow/cron/jobs.json).
func NewService(storePath string) *Service {
	return &Service{
		storePath: storePath,
		timers:    make(map[string]*time.Timer),
		robfig:    robfigcron.New(),
		robfigIDs: make(map[string]robfigcron.EntryID),
	}
}

// SetRunner registers the function executed when a job fires.
// Must be set before Start().
func (s *Service) SetRunner(fn RunFunc) { s.run = fn }

// Start loads jobs from disk, recomputes next-run times and arms every
// enabled job. Blocks until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if err := s.loadLocked(); err != nil {
		slog.Warn("cron: load failed, starting empty", "err", err)
	}
	s.recomputeNextRunsLocked()
	s.saveLocked()
	for _, j := range s.store.Jobs {
		if j.Enabled {
			s.armJobLocked(ctx, j)
		}
	}
	s.mu.Unlock()

	s.robfig.Start()
	slog.Info("cron: started", "jobs", len(s.store.Jobs))

	<-ctx.Done()

	<-s.robfig.Stop().Done()
	s.mu.Lock()
	for id := range s.timers {
		s.cancelTimerLocked(id)
	}
	s.mu.Unlock()
	return ctx.Err()
}

// AddJob validates spec, persists the new job and returns it.
// The job is armed on the next Start.
func (s *Service) AddJob(spec JobSpec) (Job, error) {
	if spec.Payload.Query == "" {
		return Job{}, fmt.Errorf("job %q has an empty query", spec.Name)
	}
	if err := validateSchedule(spec.Schedule); err != nil {
		return Job{}, err
	}

	now := nowMs()
	job := Job{
		ID:             shortID(),
		Name:           spec.Name,
		Enabled:        true,
		Schedule:       spec.Schedule,
		Payload:        spec.Payload,
		State:          JobState{NextRunAtMs: computeNextRun(spec.Schedule, now)},
		CreatedAtMs:    now,
		UpdatedAtMs:    now,
		DeleteAfterRun: spec.DeleteAfterRun,
	}
	if job.Name == "" {
		job.Name = job.Payload.Query
	}

	s.mu.Lock()
	_ = s.loadLocked()
	s.store.Jobs = append(s.store.Jobs, job)
	s.saveLocked()
	s.mu.Unlock()

	slog.Info("cron: added job", "name", job.Name, "id", job.ID, "kind", job.Schedule.Kind)
	return job, nil
}

// RemoveJob removes a job by ID and returns true if found.
func (s *Service) RemoveJob(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.loadLocked()
	if !s.deleteLocked(id) {
		return false
	}
	s.cancelTimerLocked(id)
	s.saveLocked()
	return true
}

// ListJobs returns jobs ordered by next run time; includeDisabled controls
// visibility of disabled jobs.
func (s *Service) ListJobs(includeDisabled bool) []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.loadLocked()
	var jobs []Job
	for _, j := range s.store.Jobs {
		if includeDisabled || j.Enabled {
			jobs = append(jobs, j)
		}
	}
	sort.SliceStable(jobs, func(i, k int) bool {
		return nextOrMax(jobs[i]) < nextOrMax(jobs[k])
	})
	return jobs
}

func nextOrMax(j Job) int64 {
	if j.State.NextRunAtMs == nil {
		return int64(^uint64(0) >> 1)
	}
	return *j.State.NextRunAtMs
}

// EnableJob enables or disables a job.
func (s *Service) EnableJob(id string, enabled bool) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.loadLocked()
	for i := range s.store.Jobs {
		if s.store.Jobs[i].ID != id {
			continue
		}
		j := &s.store.Jobs[i]
		j.Enabled = enabled
		j.UpdatedAtMs = nowMs()
		if enabled {
			j.State.NextRunAtMs = computeNextRun(j.Schedule, nowMs())
		} else {
			j.State.NextRunAtMs = nil
			s.cancelTimerLocked(id)
		}
		s.saveLocked()
		return *j, true
	}
	return Job{}, false
}

// RunJob executes a job now (force ignores the disabled flag) and blocks
// until it finishes.
func (s *Service) RunJob(ctx context.Context, id string, force bool) bool {
	s.mu.Lock()
	_ = s.loadLocked()
	var job *Job
	for i := range s.store.Jobs {
		if s.store.Jobs[i].ID == id {
			job = &s.store.Jobs[i]
			break
		}
	}
	if job == nil || (!force && !job.Enabled) {
		s.mu.Unlock()
		return false
	}
	jobCopy := *job
	s.mu.Unlock()

	s.executeJob(ctx, jobCopy)
	return true
}

// --------------------------------------------------------------------------
// Scheduling
// --------------------------------------------------------------------------

var exprParser = robfigcron.NewParser(
	robfigcron.Minute | robfigcron.Hour | robfigcron.Dom | robfigcron.Month | robfigcron.Dow,
)

func validateSchedule(sched Schedule) error {
	switch sched.Kind {
	case KindEvery:
		if sched.EveryMs == nil || *sched.EveryMs <= 0 {
			return fmt.Errorf("every schedule needs a positive interval")
		}
	case KindAt:
		if sched.AtMs == nil {
			return fmt.Errorf("at schedule needs a time")
		}
	case KindCron:
		if sched.Expr == nil {
			return fmt.Errorf("cron schedule needs an expression")
		}
		if _, err := exprParser.Parse(*sched.Expr); err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", *sched.Expr, err)
		}
		if _, err := scheduleLocation(sched); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown schedule kind %q", sched.Kind)
	}
	return nil
}

func scheduleLocation(sched Schedule) (*time.Location, error) {
	if sched.TZ == nil || *sched.TZ == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(*sched.TZ)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", *sched.TZ, err)
	}
	return loc, nil
}

func (s *Service) recomputeNextRunsLocked() {
	now := nowMs()
	for i := range s.store.Jobs {
		if s.store.Jobs[i].Enabled {
			s.store.Jobs[i].State.NextRunAtMs = computeNextRun(s.store.Jobs[i].Schedule, now)
		}
	}
}

func (s *Service) armJobLocked(ctx context.Context, job Job) {
	s.cancelTimerLocked(job.ID)

	switch job.Schedule.Kind {
	case KindEvery:
		if job.Schedule.EveryMs == nil || *job.Schedule.EveryMs <= 0 {
			return
		}
		d := time.Duration(*job.Schedule.EveryMs) * time.Millisecond
		s.timers[job.ID] = time.AfterFunc(d, func() {
			s.executeJob(ctx, job)
			if ctx.Err() != nil {
				return
			}
			s.mu.Lock()
			defer s.mu.Unlock()
			for _, j := range s.store.Jobs {
				if j.ID == job.ID && j.Enabled {
					s.armJobLocked(ctx, j)
					break
				}
			}
		})

	case KindAt:
		if job.Schedule.AtMs == nil {
			return
		}
		delay := time.Until(time.UnixMilli(*job.Schedule.AtMs))
		if delay < 0 {
			return
		}
		s.timers[job.ID] = time.AfterFunc(delay, func() { s.executeJob(ctx, job) })

	case KindCron:
		if job.Schedule.Expr == nil {
			return
		}
		sched, err := exprParser.Parse(*job.Schedule.Expr)
		if err != nil {
			slog.Warn("cron: invalid cron expression", "job", job.ID, "expr", *job.Schedule.Expr, "err", err)
			return
		}
		loc, err := scheduleLocation(job.Schedule)
		if err != nil {
			slog.Warn("cron: invalid timezone, using local", "job", job.ID, "err", err)
			loc = time.Local
		}
		s.robfigIDs[job.ID] = s.robfig.Schedule(
			locSchedule{inner: sched, loc: loc},
			robfigcron.FuncJob(func() { s.executeJob(ctx, job) }),
		)
	}
}

func (s *Service) cancelTimerLocked(id string) {
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	if eid, ok := s.robfigIDs[id]; ok {
		s.robfig.Remove(eid)
		delete(s.robfigIDs, id)
	}
}

func (s *Service) executeJob(ctx context.Context, job Job) {
	startMs := nowMs()
	slog.Info("cron: executing job", "name", job.Name, "id", job.ID)

	status := "ok"
	var lastErr, lastReport *string

	if s.run != nil {
		path, err := s.run(ctx, job)
		if err != nil {
			status = "error"
			e := err.Error()
			lastErr = &e
			slog.Error("cron: job failed", "name", job.Name, "err", err)
		} else if path != "" {
			lastReport = &path
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.store.Jobs {
		if s.store.Jobs[i].ID != job.ID {
			continue
		}
		now := nowMs()
		j := &s.store.Jobs[i]
		j.State.LastRunAtMs = &startMs
		j.State.LastStatus = &status
		j.State.LastError = lastErr
		if lastReport != nil {
			j.State.LastReport = lastReport
		}
		j.UpdatedAtMs = now

		switch {
		case job.Schedule.Kind == KindAt && job.DeleteAfterRun:
			s.deleteLocked(job.ID)
		case job.Schedule.Kind == KindAt:
			j.Enabled = false
			j.State.NextRunAtMs = nil
		default:
			j.State.NextRunAtMs = computeNextRun(job.Schedule, now)
		}
		break
	}
	s.saveLocked()
}

func (s *Service) deleteLocked(id string) bool {
	before := len(s.store.Jobs)
	filtered := s.store.Jobs[:0]
	for _, j := range s.store.Jobs {
		if j.ID != id {
			filtered = append(filtered, j)
		}
	}
	s.store.Jobs = filtered
	return len(filtered) < before
}

// --------------------------------------------------------------------------
// Persistence
// --------------------------------------------------------------------------

func (s *Service) loadLocked() error {
	if s.loaded {
		return nil
	}
	s.loaded = true
	data, err := os.ReadFile(s.storePath)
	if os.IsNotExist(err) {
		s.store = jobStore{Version: 1}
		return nil
	}
	if err != nil {
		return err
	}
	var st jobStore
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	if st.Version == 0 {
		st.Version = 1
	}
	s.store = st
	return nil
}

func (s *Service) saveLocked() {
	if err := os.MkdirAll(filepath.Dir(s.storePath), 0o755); err != nil {
		slog.Warn("cron: mkdir failed", "err", err)
		return
	}
	data, err := json.MarshalIndent(s.store, "", "  ")
	if err != nil {
		slog.Warn("cron: marshal failed", "err", err)
		return
	}
	if err := os.WriteFile(s.storePath, data, 0o644); err != nil {
		slog.Warn("cron: write failed", "err", err)
	}
}

// --------------------------------------------------------------------------
// Utility
// --------------------------------------------------------------------------

func nowMs() int64 { return time.Now().UnixMilli() }

func shortID() string {
	return fmt.Sprintf("%08x", time.Now().UnixNano()&0xFFFFFFFF)
}

// computeNextRun returns the next fire time in ms, or nil if the job will
// not fire again.
func computeNextRun(sched Schedule, nowMs int64) *int64 {
	switch sched.Kind {
	case KindAt:
		if sched.AtMs != nil && *sched.AtMs > nowMs {
			v := *sched.AtMs
			return &v
		}
	case KindEvery:
		if sched.EveryMs != nil && *sched.EveryMs > 0 {
			v := nowMs + *sched.EveryMs
			return &v
		}
	case KindCron:
		if sched.Expr == nil {
			return nil
		}
		parsed, err := exprParser.Parse(*sched.Expr)
		if err != nil {
			return nil
		}
		loc, err := scheduleLocation(sched)
		if err != nil {
			return nil
		}
		v := parsed.Next(time.UnixMilli(nowMs).In(loc)).UnixMilli()
		return &v
	}
	return nil
}

// locSchedule evaluates a schedule in a fixed location.
type locSchedule struct {
	inner robfigcron.Schedule
	loc   *time.Location
}

func (l locSchedule) Next(t time.Time) time.Time {
	return l.inner.Next(t.In(l.loc))
}
