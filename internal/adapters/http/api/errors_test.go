package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	service "github.com/okian/kickoff/internal/app"
	"github.com/okian/kickoff/internal/domain/errs"
	. "github.com/smartystreets/goconvey/convey"
)

func TestStatusFor(t *testing.T) {
	Convey("Engine error kinds map onto status codes", t, func() {
		cases := []struct {
			err    error
			status int
			code   string
		}{
			{errs.New("op", errs.ErrValidation, "bad"), http.StatusBadRequest, "bad_request"},
			{errs.New("op", errs.ErrNotFound, "gone"), http.StatusNotFound, "not_found"},
			{errs.New("op", errs.ErrConflict, "stale"), http.StatusConflict, "conflict"},
			{errs.New("op", errs.ErrPersistence, "down"), http.StatusServiceUnavailable, "persistence_unavailable"},
			{errs.New("op", errs.ErrIncompleteState, "short"), http.StatusUnprocessableEntity, "incomplete"},
			{errs.New("op", errs.ErrOverloaded, "full"), http.StatusTooManyRequests, "backpressure"},
			{fmt.Errorf("wrapped: %w", service.ErrNotStarted), http.StatusServiceUnavailable, "not_started"},
			{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
		}
		for _, c := range cases {
			status, code := statusFor(c.err)
			So(status, ShouldEqual, c.status)
			So(code, ShouldEqual, c.code)
		}
	})
}

func TestWrapKind(t *testing.T) {
	Convey("WrapKind keeps the kind, the cause and the validation kind", t, func() {
		cause := errors.New("unexpected EOF")
		err := WrapKind("api.move", ErrBadRequest, cause)
		So(errors.Is(err, ErrBadRequest), ShouldBeTrue)
		So(errors.Is(err, cause), ShouldBeTrue)
		So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
		So(err.Error(), ShouldContainSubstring, "api.move")

		Convey("A nil cause falls back to NewKind", func() {
			err := WrapKind("api.move", ErrBadRequest, nil)
			So(errors.Is(err, ErrBadRequest), ShouldBeTrue)
			So(errs.KindOf(err), ShouldEqual, errs.ErrValidation)
		})
	})
}

func TestErrorClassification(t *testing.T) {
	Convey("Status codes are classified for error metrics", t, func() {
		So(getErrorType(http.StatusBadRequest), ShouldEqual, "client_error")
		So(getErrorType(http.StatusNotFound), ShouldEqual, "not_found")
		So(getErrorType(http.StatusConflict), ShouldEqual, "conflict")
		So(getErrorType(http.StatusUnprocessableEntity), ShouldEqual, "incomplete")
		So(getErrorType(http.StatusTooManyRequests), ShouldEqual, "backpressure")
		So(getErrorType(http.StatusInternalServerError), ShouldEqual, "server_error")
		So(getErrorType(http.StatusServiceUnavailable), ShouldEqual, "unavailable")
		So(getErrorType(http.StatusOK), ShouldEqual, "unknown")

		So(getErrorSeverity(http.StatusServiceUnavailable), ShouldEqual, "high")
		So(getErrorSeverity(http.StatusConflict), ShouldEqual, "medium")
		So(getErrorSeverity(http.StatusOK), ShouldEqual, "low")
	})
}
