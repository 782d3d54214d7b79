package try_test

import (
	"errors"
	"strconv"
	"testing"

	"github.com/virtual-closet/closet/pkg/utils/try"
)

type fataler struct {
	fatal  [][]any
	helper uint
}

func (f *fataler) Fatal(args ...any) {
	f.fatal = append(f.fatal, args)
}

func (f *fataler) Helper() {
	f.helper += 1
}

func TestTry(t *testing.T) {
	t.Run("when it does not have error,", func(t *testing.T) {
		testee := try.To(42, nil)

		t.Run("OrFatal returns the value without calling Fatal", func(t *testing.T) {
			f := &fataler{}
			if actual := testee.OrFatal(f); actual != 42 {
				t.Errorf("unexpected result: %d", actual)
			}
			if len(f.fatal) != 0 || f.helper != 0 {
				t.Errorf("fataler is called: %+v", f)
			}
		})

		t.Run("OrDefault returns the value", func(t *testing.T) {
			if actual := testee.OrDefault(7); actual != 42 {
				t.Errorf("unexpected result: %d", actual)
			}
		})

		t.Run("Map converts the value", func(t *testing.T) {
			v, err := try.Map(testee, strconv.Itoa).Get()
			if err != nil || v != "42" {
				t.Errorf("unexpected result: (%q, %v)", v, err)
			}
		})
	})

	t.Run("when it has error,", func(t *testing.T) {
		expected := errors.New("fake error")
		testee := try.To(42, expected)

		t.Run("Get returns zero value", func(t *testing.T) {
			v, err := testee.Get()
			if v != 0 || !errors.Is(err, expected) {
				t.Errorf("unexpected result: (%d, %v)", v, err)
			}
		})

		t.Run("OrFatal calls Helper and Fatal with the error", func(t *testing.T) {
			f := &fataler{}
			testee.OrFatal(f)
			if f.helper != 1 {
				t.Errorf("Helper is called %d times", f.helper)
			}
			if len(f.fatal) != 1 || f.fatal[0][0] != expected {
				t.Errorf("unexpected Fatal calls: %v", f.fatal)
			}
		})

		t.Run("OrDefault returns default", func(t *testing.T) {
			if actual := testee.OrDefault(7); actual != 7 {
				t.Errorf("unexpected result: %d", actual)
			}
		})

		t.Run("Map passes the error through", func(t *testing.T) {
			if _, err := try.Map(testee, strconv.Itoa).Get(); !errors.Is(err, expected) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	})
}
