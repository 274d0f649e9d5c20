package stats

import (
	"sync"
	"time"
)

type Snapshot struct {
	Uptime          float64 `json:"uptime"`
	FPS             uint64  `json:"fps"`
	Frames          uint64  `json:"frames"`
	FrameIntervalMs float64 `json:"frame_interval_ms"`
	Running         bool    `json:"running"`
	WsClients       int     `json:"ws_clients"`
}

type Stats struct {
	mu sync.Mutex
	Snapshot

	frameCounter uint64
	frameTimer   time.Time
	start        time.Time
}

func New() *Stats {
	s := &Stats{}
	s.start = time.Now()
	s.frameTimer = s.start
	return s
}

// Update records one pipeline frame, delta being the time since the
// previous one.
func (s *Stats) Update(delta time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Frames++
	s.frameCounter++
	if time.Since(s.frameTimer) > 1*time.Second {
		s.FPS = s.frameCounter
		s.frameCounter = 0
		s.frameTimer = time.Now()
	}

	s.FrameIntervalMs = float64(delta.Microseconds()) / 1000
	s.Uptime = float64(time.Since(s.start).Nanoseconds()) / 1e9
}

func (s *Stats) SetRunning(running bool) {
	s.mu.Lock()
	s.Running = running
	s.mu.Unlock()
}

func (s *Stats) SetWsClients(n int) {
	s.mu.Lock()
	s.WsClients = n
	s.mu.Unlock()
}

func (s *Stats) Get() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.Snapshot
	snap.Uptime = float64(time.Since(s.start).Nanoseconds()) / 1e9
	return snap
}
