package api

import (
	"context"
	"log/slog"
	"net/http"
	"sf-exporter/service"

	"github.com/gin-gonic/gin"
)

// Runner executes one export invocation.
type Runner interface {
	Run(ctx context.Context, p service.Params, r service.Reporter) service.CompletionPayload
}

func ExportHandler(runner Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.Params
		if err := c.ShouldBindJSON(&req); err != nil {
			slog.WarnContext(c.Request.Context(), "Invalid request body", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		slog.InfoContext(c.Request.Context(), "Received export request",
			"driver", req.DriverName(),
			"command_file", req.CommandFile,
			"target", service.ResolveTarget(req).Kind.String(),
			"database", req.Database,
			"warehouse", req.Warehouse,
		)

		res := runner.Run(c.Request.Context(), req, service.ReporterFunc(func(ctx context.Context, p service.CompletionPayload) {
			slog.InfoContext(ctx, "Export finished", "end", p.End, "rows", p.ExtraOutput["db_countrows"])
		}))
		if res.End != service.EndOK {
			slog.ErrorContext(c.Request.Context(), "Export failed", "error", res.MessageLog)
			c.JSON(http.StatusInternalServerError, res)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}
