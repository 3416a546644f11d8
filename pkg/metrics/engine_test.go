package metrics

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNewEngineMetrics(t *testing.T) {
	Convey("When creating a new metrics instance", t, func() {
		m := NewEngineMetrics()
		Convey("Then it should not be nil", func() {
			So(m, ShouldNotBeNil)
		})
	})
}

func TestRecordDispatch(t *testing.T) {
	Convey("Given a metrics instance", t, func() {
		m := NewEngineMetrics()
		m.RecordDispatch(true, time.Second)
		m.RecordDispatch(false, 3*time.Second)

		Convey("Then dispatch stats are recorded", func() {
			So(m.TotalDispatches, ShouldEqual, 2)
			So(m.FailedDispatches, ShouldEqual, 1)
			So(m.GetMetrics()["avg_dispatch_time"], ShouldEqual, 2.0)
		})
	})
}

func TestGetMetricsEmpty(t *testing.T) {
	Convey("Given a fresh metrics instance", t, func() {
		m := NewEngineMetrics()

		Convey("Then averages do not divide by zero", func() {
			So(m.GetMetrics()["avg_dispatch_time"], ShouldEqual, 0.0)
		})
	})
}

func TestObserve(t *testing.T) {
	Convey("Given the process-wide recorder", t, func() {
		before := Snapshot()["total_events"].(int64)

		ObserveEvent("starting")
		ObserveRound("Weather")
		ObserveDispatch("", true, time.Millisecond)

		Convey("Then the snapshot moves forward", func() {
			So(Snapshot()["total_events"].(int64), ShouldEqual, before+1)
		})
	})
}
