package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolStater is the part of *pgxpool.Pool read by RecordDBPoolMetrics.
type PoolStater interface {
	Stat() *pgxpool.Stat
}

// RecordDBPoolMetrics copies a pool snapshot into the db gauges.
func RecordDBPoolMetrics(pool PoolStater) {
	stat := pool.Stat()

	DBPoolConnections.WithLabelValues("in_use").Set(float64(stat.AcquiredConns()))
	DBPoolConnections.WithLabelValues("idle").Set(float64(stat.IdleConns()))
	DBPoolConnections.WithLabelValues("constructing").Set(float64(stat.ConstructingConns()))
	DBPoolConnections.WithLabelValues("max").Set(float64(stat.MaxConns()))
	DBPoolEmptyAcquires.Set(float64(stat.EmptyAcquireCount()))
}
