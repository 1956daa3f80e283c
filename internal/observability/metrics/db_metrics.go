package metrics

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

func registerDBMetrics(db *sql.DB, logger *logrus.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "kv_entries",
			Help: "Stored key-value entries",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM kv_entries")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "latest_report_age_seconds",
			Help: "Seconds since any firm's latest report was stored",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COALESCE(EXTRACT(EPOCH FROM now() - MAX(updated_at)), 0)::bigint FROM kv_entries WHERE key LIKE 'reports:latest:%:xlsx'")
		},
	))
}

func queryCount(db *sql.DB, logger *logrus.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.WithError(err).Warn("metrics query failed")
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
