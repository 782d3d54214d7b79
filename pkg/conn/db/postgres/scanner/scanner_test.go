package scanner

import (
	"strings"
	"testing"

	"github.com/jackc/pgtype"
)

type example struct {
	Id        string `sql:"doll_id"`
	SkinColor string
	hidden    string
}

func TestScanner_fieldFor(t *testing.T) {
	testee := New[example]()

	for col, expected := range map[string]string{
		"doll_id":    "Id",
		"skin_color": "SkinColor",
	} {
		t.Run("column "+col+" goes to field "+expected, func(t *testing.T) {
			actual, err := testee.fieldFor(col, pgtype.TextOID)
			if err != nil {
				t.Fatal(err)
			}
			if actual != expected {
				t.Errorf("unmatch field: %s, expected %s", actual, expected)
			}
		})
	}

	t.Run("unexported field is not a destination", func(t *testing.T) {
		_, err := testee.fieldFor("hidden", pgtype.TextOID)
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "(text)") {
			t.Errorf("error does not tell sql type: %s", err)
		}
	})

	t.Run("unknown column is reported with its type", func(t *testing.T) {
		_, err := testee.fieldFor("created_at", pgtype.TimestamptzOID)
		if err == nil || !strings.Contains(err.Error(), "timestamptz") {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestNew(t *testing.T) {
	t.Run("it panics for non-struct type", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("not panicked")
			}
		}()
		New[int]()
	})
}

func TestTypeName(t *testing.T) {
	t.Run("unknown oid is shown as number", func(t *testing.T) {
		if actual := typeName(999999); actual != "oid:999999" {
			t.Errorf("unexpected name: %s", actual)
		}
	})
}
