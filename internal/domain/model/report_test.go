package model_test

import (
	"errors"
	"testing"

	model "github.com/okian/kickoff/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestPerformanceReport(t *testing.T) {
	convey.Convey("Given a performance report", t, func() {
		r := model.PerformanceReport{ReportID: "r1", PlayerID: "p1", PowerRating: 0.8, GoalThreat: 0.4}

		convey.Convey("Then a report on the unit scale validates", func() {
			convey.So(r.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then missing ids and off-scale metrics are rejected", func() {
			bad := []model.PerformanceReport{
				{PlayerID: "p1"},
				{ReportID: "r1"},
				{ReportID: "r1", PlayerID: "p1", PowerRating: 1.2},
				{ReportID: "r1", PlayerID: "p1", GoalThreat: -0.1},
			}
			for _, b := range bad {
				convey.So(errors.Is(b.Validate(), model.ErrInvalidReport), convey.ShouldBeTrue)
			}
		})

		convey.Convey("When blending into a player without history", func() {
			got := model.Performance{}.Blend(r, 0.25, false)

			convey.Convey("Then the report is taken as is", func() {
				convey.So(got, convey.ShouldResemble, model.Performance{PlayerID: "p1", PowerRating: 0.8, GoalThreat: 0.4})
			})
		})

		convey.Convey("When blending into existing history", func() {
			prev := model.Performance{PlayerID: "p1", PowerRating: 0.4, GoalThreat: 0.8}
			got := prev.Blend(r, 0.25, true)

			convey.Convey("Then the report carries alpha of the weight", func() {
				convey.So(got.PowerRating, convey.ShouldAlmostEqual, 0.5, 1e-9)
				convey.So(got.GoalThreat, convey.ShouldAlmostEqual, 0.7, 1e-9)
			})
		})
	})
}
