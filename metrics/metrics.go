// Package metrics records harness run outcomes for Prometheus scraping.
package metrics

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/keclang/kecc-acceptor/types"
)

const (
	MetricsNamespace = "kecc_acceptor"
)

var (
	nonAlphanumericRegex = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	pipelinesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "pipelines_total",
		Help:      "Count of executed test pipelines",
	}, []string{
		"run_id",
		"test",
		"target",
		"result",
	})

	stageFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "stage_failures_total",
		Help:      "Count of pipeline stage failures",
	}, []string{
		"run_id",
		"target",
		"stage",
	})

	acceptanceResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "acceptance_results",
		Help:      "Result of an acceptance run",
	}, []string{
		"run_id",
		"result",
	})

	acceptanceTestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "acceptance_test_total",
		Help:      "Total number of test pipelines in a run",
	}, []string{
		"run_id",
	})

	acceptanceTestPassed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "acceptance_test_passed",
		Help:      "Number of passed test pipelines in a run",
	}, []string{
		"run_id",
	})

	acceptanceTestFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "acceptance_test_failed",
		Help:      "Number of failed test pipelines in a run",
	}, []string{
		"run_id",
	})

	acceptanceRunDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "acceptance_run_duration_seconds",
		Help:      "Duration of an acceptance run",
	}, []string{
		"run_id",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label.
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label after cleaning
// it into a valid Prometheus label.
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	RecordError(fmt.Sprintf("%s.%s", label, errToLabel(err)))
}

// RecordPipeline records the outcome of one (test, target) pipeline.
func RecordPipeline(runID string, result *types.TestResult) {
	pipelinesTotal.WithLabelValues(runID, result.Case.Name, result.Target, string(result.Status)).Inc()
	if result.Stage != nil {
		stageFailuresTotal.WithLabelValues(runID, result.Target, result.Stage.Result.Stage).Inc()
	}
}

// RecordAcceptance records a whole run's summary.
func RecordAcceptance(runID string, result string, total, passed, failed int, duration time.Duration) {
	acceptanceResults.WithLabelValues(runID, result).Set(1)
	acceptanceTestTotal.WithLabelValues(runID).Add(float64(total))
	acceptanceTestPassed.WithLabelValues(runID).Add(float64(passed))
	acceptanceTestFailed.WithLabelValues(runID).Add(float64(failed))
	acceptanceRunDuration.WithLabelValues(runID).Set(duration.Seconds())
}
