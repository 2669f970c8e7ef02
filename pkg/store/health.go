package store

import (
	"context"
	"time"
)

// HealthStatus reports connection pool health, backed by a pgxpool.Pool's
// Stat() rather than database/sql's DBStats.
type HealthStatus struct {
	Status          string        `json:"status"`
	ResponseTime    time.Duration `json:"response_time_ms"`
	TotalConns      int32         `json:"total_conns"`
	AcquiredConns   int32         `json:"acquired_conns"`
	IdleConns       int32         `json:"idle_conns"`
	MaxConns        int32         `json:"max_conns"`
	NewConnsCount   int64         `json:"new_conns_count"`
	EmptyAcquireCnt int64         `json:"empty_acquire_count"`
}

// Health pings the pool and reports its connection statistics.
func (s *Store) Health(ctx context.Context) (*HealthStatus, error) {
	start := time.Now()
	if err := s.pool.Ping(ctx); err != nil {
		return &HealthStatus{Status: "unhealthy", ResponseTime: time.Since(start)}, err
	}
	stat := s.pool.Stat()
	return &HealthStatus{
		Status:          "healthy",
		ResponseTime:    time.Since(start),
		TotalConns:      stat.TotalConns(),
		AcquiredConns:   stat.AcquiredConns(),
		IdleConns:       stat.IdleConns(),
		MaxConns:        stat.MaxConns(),
		NewConnsCount:   stat.NewConnsCount(),
		EmptyAcquireCnt: stat.EmptyAcquireCount(),
	}, nil
}
