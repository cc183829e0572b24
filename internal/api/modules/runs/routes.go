package runs

import (
	"time"

	"github.com/ethanbaker/riskwatch/internal/pipeline"
	"github.com/ethanbaker/riskwatch/internal/scheduler"
	"github.com/gin-gonic/gin"
)

// Reports exposes the most recent run report
type Reports interface {
	Latest() *pipeline.RunReport
}

// Schedule exposes the daemon's cron tasks
type Schedule interface {
	GetTasks() []*scheduler.Task
	Next(key string) (time.Time, bool)
}

// RegisterRoutes registers the routes for the runs module. schedule may be nil
func RegisterRoutes(g *gin.RouterGroup, reports Reports, schedule Schedule) {
	ctrl := &controller{reports: reports, schedule: schedule}

	runs := g.Group("/runs")
	runs.GET("/latest", ctrl.getLatest)
	runs.GET("/schedule", ctrl.getSchedule)
}
