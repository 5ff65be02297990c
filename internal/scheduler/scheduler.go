// Package scheduler implements the Scheduler (spec §4.8): four fixed-period
// background tasks, the embedding backfill job, and a backoff retry queue
// for deliveries that failed.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"
)

// Job is a unit of scheduled work, self-describing its next run time.
type Job interface {
	Run(ctx context.Context) error
	GetNextRunTime() time.Time
}

// Scheduler manages and runs scheduled jobs via self-rescheduling timers.
type Scheduler struct {
	jobs    map[string]Job
	timers  map[string]*time.Timer
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// New creates a new Scheduler.
func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		jobs:   make(map[string]Job),
		timers: make(map[string]*time.Timer),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register adds a job to the scheduler under name.
func (s *Scheduler) Register(name string, job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[name] = job
	log.Printf("✅ [SCHEDULER] Registered job: %s", name)
}

// Start begins running all registered jobs.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	s.running = true
	log.Printf("🚀 [SCHEDULER] Starting scheduler with %d jobs", len(s.jobs))

	for name, job := range s.jobs {
		s.scheduleJob(name, job)
	}
}

func (s *Scheduler) scheduleJob(name string, job Job) {
	nextRun := job.GetNextRunTime()
	duration := time.Until(nextRun)
	if duration < 0 {
		duration = 0
	}

	log.Printf("⏰ [SCHEDULER] Job '%s' scheduled in %v", name, duration)

	timer := time.AfterFunc(duration, func() {
		s.runJob(name, job)
	})
	s.timers[name] = timer
}

func (s *Scheduler) runJob(name string, job Job) {
	s.wg.Add(1)
	defer s.wg.Done()

	start := time.Now()
	if err := job.Run(s.ctx); err != nil {
		log.Printf("❌ [SCHEDULER] Job '%s' failed: %v", name, err)
	}
	log.Printf("✅ [SCHEDULER] Job '%s' completed in %v", name, time.Since(start))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.scheduleJob(name, job)
	}
}

// Stop gracefully stops all jobs and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false

	for name, timer := range s.timers {
		timer.Stop()
		log.Printf("⏹️  [SCHEDULER] Stopped job: %s", name)
	}
	s.timers = make(map[string]*time.Timer)
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	log.Println("✅ [SCHEDULER] Scheduler stopped")
}

// RunNow immediately runs a registered job by name, bypassing its timer.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	job, exists := s.jobs[name]
	s.mu.Unlock()

	if !exists {
		return nil
	}
	return job.Run(s.ctx)
}

// Status reports each registered job's next scheduled run time.
type Status struct {
	Name        string    `json:"name"`
	NextRunTime time.Time `json:"next_run_time"`
}

// GetStatus returns the status of all registered jobs.
func (s *Scheduler) GetStatus() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Status, 0, len(s.jobs))
	for name, job := range s.jobs {
		out = append(out, Status{Name: name, NextRunTime: job.GetNextRunTime()})
	}
	return out
}
