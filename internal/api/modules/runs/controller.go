package runs

import (
	"net/http"

	"github.com/ethanbaker/riskwatch/internal/pipeline"
	"github.com/ethanbaker/riskwatch/pkg/sdk"
	"github.com/gin-gonic/gin"
)

type controller struct {
	reports  Reports
	schedule Schedule
}

// getLatest handles GET requests for the most recent run report
func (ctrl *controller) getLatest(c *gin.Context) {
	var report *pipeline.RunReport
	if ctrl.reports != nil {
		report = ctrl.reports.Latest()
	}
	if report == nil {
		c.JSON(sdk.NewErrorResponse(http.StatusNotFound, "No run has finished yet", nil).AsGinResponse())
		return
	}

	c.JSON(sdk.NewSuccessResponse("Latest run retrieved successfully", toSDKRun(report)).AsGinResponse())
}

// getSchedule handles GET requests for the cron tasks and their next run times
func (ctrl *controller) getSchedule(c *gin.Context) {
	tasks := []sdk.ScheduledTask{}
	if ctrl.schedule != nil {
		for _, task := range ctrl.schedule.GetTasks() {
			next, _ := ctrl.schedule.Next(task.Key)
			tasks = append(tasks, sdk.ScheduledTask{Key: task.Key, Spec: task.Spec, NextRun: next})
		}
	}

	c.JSON(sdk.NewSuccessResponse("Schedule retrieved successfully", tasks).AsGinResponse())
}

func toSDKRun(r *pipeline.RunReport) sdk.Run {
	return sdk.Run{
		ID:         r.RunID,
		Kind:       r.Kind,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		DurationMS: r.Duration().Milliseconds(),
		Seed:       r.Seed,
		Source:     r.Source,
		Topics: sdk.TopicCounts{
			Planned:   r.TopicsPlanned,
			Attempted: r.TopicsAttempted,
			Failed:    r.TopicsFailed,
		},
		Candidates: sdk.CandidateCounts{
			Mined:       r.Mined,
			Invalid:     r.Invalid,
			OffTaxonomy: r.OffTaxonomy,
			Skipped:     r.Skipped,
			Verified:    r.Verified,
			Degraded:    r.Degraded,
			Unverified:  r.Unverified,
			Rejected:    r.Rejected,
		},
		Store: sdk.StoreCounts{
			Inserted:    r.Inserted,
			Refreshed:   r.Refreshed,
			Revived:     r.Revived,
			Archived:    r.Archived,
			Reverified:  r.Reverified,
			Unconfirmed: r.Unconfirmed,
			Checkpoints: r.Checkpoints,
			Active:      r.TotalActive,
			Inactive:    r.TotalArchived,
		},
		Error: r.Error,
	}
}
