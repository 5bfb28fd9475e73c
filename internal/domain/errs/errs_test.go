package errs

import (
	"errors"
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestError(t *testing.T) {
	Convey("Given a wrapped cause", t, func() {
		cause := errors.New("disk full")
		err := Wrap("lineup.clear", ErrPersistence, cause)

		Convey("Then it matches both kind and cause", func() {
			So(errors.Is(err, ErrPersistence), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(errors.Is(err, ErrValidation), ShouldBeFalse)
			So(KindOf(err), ShouldEqual, ErrPersistence)
		})

		Convey("Then the message carries op, kind and cause", func() {
			So(err.Error(), ShouldEqual, "lineup.clear: persistence error: disk full")
		})

		Convey("And wrapping it further keeps the kind", func() {
			outer := fmt.Errorf("service: %w", err)
			So(KindOf(outer), ShouldEqual, ErrPersistence)
			var e *Error
			So(errors.As(outer, &e), ShouldBeTrue)
			So(e.Op, ShouldEqual, "lineup.clear")
		})
	})

	Convey("Given New with a format", t, func() {
		err := New("formation.derive", ErrValidation, "size %d", 0)
		So(err.Error(), ShouldEqual, "formation.derive: validation error: size 0")
	})

	Convey("Given a cause that already carries the kind", t, func() {
		err := Wrap("api", ErrNotFound, fmt.Errorf("session s1: %w", ErrNotFound))
		So(err.Error(), ShouldEqual, "api: session s1: not found")
	})

	Convey("Given nil and unkinded errors", t, func() {
		So(Wrap("op", ErrConflict, nil), ShouldBeNil)
		So(KindOf(errors.New("plain")), ShouldBeNil)
		So(KindOf(nil), ShouldBeNil)
	})
}
