package errors_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	apierr "github.com/virtual-closet/closet/pkg/api/types/errors"
)

func TestNewErrorMessage(t *testing.T) {
	t.Run("it renders reason and advice, but not cause", func(t *testing.T) {
		cause := errors.New("disk is full")
		herr := apierr.NewErrorMessage(
			http.StatusInternalServerError, "doll generation failed",
			apierr.WithAdvice("check the generator"),
			apierr.WithError(cause),
		)

		if herr.Code != http.StatusInternalServerError {
			t.Errorf("unexpected status: %d", herr.Code)
		}
		if !errors.Is(herr.Internal, cause) {
			t.Errorf("cause is not kept as internal: %v", herr.Internal)
		}

		b, err := json.Marshal(herr.Message)
		if err != nil {
			t.Fatal(err)
		}
		expected := `{"message":{"reason":"doll generation failed","advice":"check the generator"}}`
		if string(b) != expected {
			t.Errorf("unexpected body:\n- actual  : %s\n- expected: %s", b, expected)
		}
	})
}

func TestErrorMessage_UnmarshalJSON(t *testing.T) {
	t.Run("it requires reason", func(t *testing.T) {
		msg := apierr.ErrorMessage{}
		if err := json.Unmarshal([]byte(`{"advice":"x"}`), &msg); err == nil {
			t.Error("expected error, but got nil")
		}
	})

	t.Run("it reads all fields", func(t *testing.T) {
		resp := apierr.ErrorResponse{}
		if err := json.Unmarshal(
			[]byte(`{"message":{"reason":"r","advice":"a","see":"s"}}`), &resp,
		); err != nil {
			t.Fatal(err)
		}
		if resp.Message.Reason != "r" || resp.Message.Advice != "a" || resp.Message.See != "s" {
			t.Errorf("unexpected message: %+v", resp.Message)
		}
	})
}

func TestHelpers(t *testing.T) {
	for name, testcase := range map[string]struct {
		code     int
		expected int
	}{
		"NotFound":            {code: apierr.NotFound("").Code, expected: http.StatusNotFound},
		"BadRequest":          {code: apierr.BadRequest("", nil).Code, expected: http.StatusBadRequest},
		"Conflict":            {code: apierr.Conflict("dup").Code, expected: http.StatusConflict},
		"ServiceUnavailable":  {code: apierr.ServiceUnavailable("", nil).Code, expected: http.StatusServiceUnavailable},
		"InternalServerError": {code: apierr.InternalServerError(nil).Code, expected: http.StatusInternalServerError},
	} {
		t.Run(name+" has its status code", func(t *testing.T) {
			if testcase.code != testcase.expected {
				t.Errorf("unexpected status: %d (expected %d)", testcase.code, testcase.expected)
			}
		})
	}
}
