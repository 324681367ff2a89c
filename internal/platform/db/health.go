package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// poolStats is the pool snapshot the clinic dashboard polls.
type poolStats struct {
	Acquired          int32 `json:"acquired"`
	Idle              int32 `json:"idle"`
	Total             int32 `json:"total"`
	Max               int32 `json:"max"`
	EmptyAcquireCount int64 `json:"empty_acquire_count"`
}

func snapshotPool(pool *pgxpool.Pool) poolStats {
	stat := pool.Stat()
	return poolStats{
		Acquired:          stat.AcquiredConns(),
		Idle:              stat.IdleConns(),
		Total:             stat.TotalConns(),
		Max:               stat.MaxConns(),
		EmptyAcquireCount: stat.EmptyAcquireCount(),
	}
}

func healthStatus(err error) (int, string) {
	if err != nil {
		return http.StatusServiceUnavailable, "down"
	}
	return http.StatusOK, "up"
}

// HealthHandler pings the database and reports pool state and ping latency.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
		defer cancel()

		start := time.Now()
		err := pool.Ping(ctx)
		latency := time.Since(start)

		code, status := healthStatus(err)
		payload := map[string]interface{}{
			"database":   status,
			"latency_ms": latency.Milliseconds(),
			"pool":       snapshotPool(pool),
		}
		if err != nil {
			payload["error"] = err.Error()
		}
		return c.JSON(code, payload)
	}
}
