// Package sweeper garbage-collects strokes left open past a configurable
// age, e.g. when a pointer-up never reached the server. Sweeps are posted
// into the hub loop so they are serialized with every other room mutation.
package sweeper

import (
	"log"
	"sync"
	"time"
)

type Config struct {
	Interval     time.Duration
	MaxStrokeAge time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval:     30 * time.Second,
		MaxStrokeAge: 2 * time.Minute,
	}
}

// Target is the hub-side entry point for a sweep.
type Target interface {
	SweepAbandoned(age time.Duration)
}

type Service struct {
	target Target
	config Config
	stop   chan struct{}
	wg     sync.WaitGroup
}

func New(target Target, config Config) *Service {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.MaxStrokeAge <= 0 {
		config.MaxStrokeAge = DefaultConfig().MaxStrokeAge
	}
	return &Service{
		target: target,
		config: config,
		stop:   make(chan struct{}),
	}
}

func (s *Service) Start() {
	s.wg.Add(1)
	go s.run()
	log.Printf("sweeper started (interval: %v, max stroke age: %v)",
		s.config.Interval, s.config.MaxStrokeAge)
}

func (s *Service) Stop() {
	close(s.stop)
	s.wg.Wait()
	log.Println("sweeper stopped")
}

func (s *Service) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.target.SweepAbandoned(s.config.MaxStrokeAge)
		}
	}
}
