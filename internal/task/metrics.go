package task

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/fyrsmithlabs/reviewd/internal/task"

var (
	tasksCreatedCounter   metric.Int64Counter
	tasksFinishedCounter  metric.Int64Counter
	taskDurationHistogram metric.Float64Histogram
)

// initMetrics initializes OpenTelemetry metrics for the task lifecycle.
// Called once during package initialization.
func initMetrics() {
	meter := otel.Meter(instrumentationName)

	var err error

	tasksCreatedCounter, err = meter.Int64Counter(
		"reviewd.tasks.created",
		metric.WithDescription("Total number of tasks created"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create tasks created counter: %v", err))
	}

	tasksFinishedCounter, err = meter.Int64Counter(
		"reviewd.tasks.finished",
		metric.WithDescription("Total number of tasks reaching a terminal status"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create tasks finished counter: %v", err))
	}

	taskDurationHistogram, err = meter.Float64Histogram(
		"reviewd.tasks.duration",
		metric.WithDescription("Wall-clock duration of task executions"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create task duration histogram: %v", err))
	}
}

func init() {
	initMetrics()
}
