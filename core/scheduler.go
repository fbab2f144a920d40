package core

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Job is one periodic background task.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler drives the background jobs: channel refresh, alert sweep, and
// the daily key-pool quota reset. One goroutine per job, each running a
// ticker loop with a shared quit channel.
type Scheduler struct {
	jobs   []Job
	logger *logrus.Logger
	quit   chan struct{}
	wg     sync.WaitGroup
}

func NewScheduler(logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		logger: logger,
		quit:   make(chan struct{}),
	}
}

// Add registers a job. Must be called before Start.
func (s *Scheduler) Add(name string, interval time.Duration, run func(ctx context.Context) error) {
	s.jobs = append(s.jobs, Job{Name: name, Interval: interval, Run: run})
}

// Start launches every registered job loop.
func (s *Scheduler) Start() {
	for _, job := range s.jobs {
		s.wg.Add(1)
		go func(job Job) {
			defer s.wg.Done()
			s.runLoop(job)
		}(job)
	}
	s.logger.Infof("Scheduler started with %d jobs", len(s.jobs))
}

func (s *Scheduler) runLoop(job Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runOnce(job)
		case <-s.quit:
			return
		}
	}
}

func (s *Scheduler) runOnce(job Job) {
	s.logger.Infof("Running job: %s", job.Name)

	ctx, cancel := context.WithTimeout(context.Background(), job.Interval)
	defer cancel()

	if err := job.Run(ctx); err != nil {
		// A failing cycle is skipped, never retried early.
		s.logger.Errorf("Job %s failed: %v", job.Name, err)
	}
}

// Stop signals every loop and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	close(s.quit)
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}
