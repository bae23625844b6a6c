package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	. "github.com/smartystreets/goconvey/convey"
)

func family(reg *prometheus.Registry, name string) *dto.MetricFamily {
	mfs, err := reg.Gather()
	So(err, ShouldBeNil)
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestManager(t *testing.T) {
	Convey("Given a manager on a private registry", t, func() {
		reg := prometheus.NewRegistry()
		m := NewManager(
			WithPrometheusRegistry(reg),
			WithNamespace("test"),
			WithSubsystem("unit"),
			WithConstLabels(map[string]string{"env": "test"}),
			WithHistogramBuckets([]float64{1, 10, 100}),
		)

		Convey("collectors use the configured names and labels", func() {
			m.jobsProcessed.WithLabelValues("rapid-fire", OutcomePlaceholder).Inc()
			m.queueLength.Set(4)

			mf := family(reg, "test_unit_jobs_processed_total")
			So(mf, ShouldNotBeNil)
			So(mf.GetMetric(), ShouldHaveLength, 1)
			So(mf.GetMetric()[0].GetCounter().GetValue(), ShouldEqual, 1)

			labels := map[string]string{}
			for _, lp := range mf.GetMetric()[0].GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			So(labels["env"], ShouldEqual, "test")
			So(labels["game"], ShouldEqual, "rapid-fire")
			So(labels["outcome"], ShouldEqual, OutcomePlaceholder)

			gauge := family(reg, "test_unit_queue_length")
			So(gauge.GetMetric()[0].GetGauge().GetValue(), ShouldEqual, 4)
		})

		Convey("registering twice on the same registry panics", func() {
			So(func() { NewManager(WithPrometheusRegistry(reg), WithNamespace("test"), WithSubsystem("unit")) }, ShouldPanic)
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Package-level recorders write to the global registry", t, func() {
		So(func() {
			RecordJobEnqueued("conductor")
			RecordJobProcessed("conductor", OutcomeScored)
			UpdateQueueLength(2)
			RecordQueueWait(12)
			SetDrainActive(true)
			SetDrainActive(false)
			RecordAdmissionRejected("slot_taken")
			RecordScoringLatency("conductor", 1500)
			RecordScoringError("conductor", "unparseable")
			UpdateActiveSessions(3)
			RecordSessionCreated("conductor")
			RecordSessionTerminal("conductor", "evaluated")
			RecordSweep(2, 1, 5)
			RecordPersistenceError("update_session")
			RecordHTTPRequest("status", "GET", "200")
			RecordHTTPRequestDuration("status", "GET", "200", 3)
			RecordErrorByComponent("worker", "scoring")
			UpdateSystemMemoryUsage(1024)
			UpdateSystemGoroutineCount(10)
		}, ShouldNotPanic)

		mf := family(GetRegistry(), "oratora_evaluation_drains_started_total")
		So(mf, ShouldNotBeNil)
		So(mf.GetMetric()[0].GetCounter().GetValue(), ShouldBeGreaterThanOrEqualTo, 1)

		active := family(GetRegistry(), "oratora_evaluation_drain_active")
		So(active.GetMetric()[0].GetGauge().GetValue(), ShouldEqual, 0)
	})
}
