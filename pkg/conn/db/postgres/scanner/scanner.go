package scanner

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
)

type Queryer interface {
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
}

// type-safe scanner for pgx.Rows
//
// # example
//
//	type Doll struct {
//		Id   string `sql:"doll_id"`
//		Name string
//	}
//
//	func GetAllDolls(ctx context.Context, conn pgx.Conn) ([]Doll, error) {
//		return scanner.New[Doll]().QueryAll(ctx, conn, `select "doll_id", "name" from "doll"`)
//	}
//
// # mapping rule
//
// columns are mapped into
//
//  1. field with tag `sql:"column_name"`
//  2. or, field which has a name in CamelCase version of column name
//     ("skin_color" -> "SkinColor").
type Scanner[T any] struct {
	byTag   map[string]string
	byField map[string]string
}

// New creates Scanner for struct T.
//
// It panics when T is not a struct.
func New[T any]() *Scanner[T] {
	typ := reflect.TypeOf(*new(T))
	if typ.Kind() != reflect.Struct {
		panic(fmt.Sprintf("scanner: %s is not a struct", typ))
	}

	byTag := map[string]string{}
	byField := map[string]string{}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if !f.IsExported() {
			continue
		}
		byField[f.Name] = f.Name
		if tag, ok := f.Tag.Lookup("sql"); ok {
			byTag[tag] = f.Name
		}
	}
	return &Scanner[T]{byTag: byTag, byField: byField}
}

func camel(s string) string {
	b := &strings.Builder{}
	for _, ss := range strings.Split(s, "_") {
		if len(ss) == 0 {
			continue
		}
		b.WriteString(strings.ToUpper(ss[0:1]))
		b.WriteString(ss[1:])
	}
	return b.String()
}

func (s *Scanner[T]) fieldFor(col string, oid uint32) (string, error) {
	if f, ok := s.byTag[col]; ok {
		return f, nil
	}
	if f, ok := s.byField[camel(col)]; ok {
		return f, nil
	}
	return "", fmt.Errorf(
		`field for column "%s" (%s) is not found in type "%T"`,
		col, typeName(oid), *new(T),
	)
}

// ScanAll scans all rows, and closes them.
func (s *Scanner[T]) ScanAll(rows pgx.Rows) ([]T, error) {
	defer rows.Close()

	descs := rows.FieldDescriptions()
	fields := make([]string, 0, len(descs))
	for _, fd := range descs {
		f, err := s.fieldFor(string(fd.Name), fd.DataTypeOID)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}

	ret := []T{}
	for rows.Next() {
		elem := new(T)
		re := reflect.ValueOf(elem).Elem()

		dest := make([]interface{}, len(fields))
		for nth, f := range fields {
			dest[nth] = re.FieldByName(f).Addr().Interface()
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		ret = append(ret, *elem)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

// QueryAll sends the query, and scans all rows in its response.
func (s *Scanner[T]) QueryAll(ctx context.Context, conn Queryer, q string, params ...interface{}) ([]T, error) {
	rows, err := conn.Query(ctx, q, params...)
	if err != nil {
		return nil, err
	}
	return s.ScanAll(rows)
}

// typeName tells name of SQL type for diagnostics.
func typeName(oid uint32) string {
	switch oid {
	case pgtype.BoolOID:
		return "bool"
	case pgtype.ByteaOID:
		return "bytea"
	case pgtype.Int2OID:
		return "int2"
	case pgtype.Int4OID:
		return "int4"
	case pgtype.Int8OID:
		return "int8"
	case pgtype.Float4OID:
		return "float4"
	case pgtype.Float8OID:
		return "float8"
	case pgtype.NumericOID:
		return "numeric"
	case pgtype.TextOID:
		return "text"
	case pgtype.VarcharOID:
		return "varchar"
	case pgtype.UUIDOID:
		return "uuid"
	case pgtype.JSONOID:
		return "json"
	case pgtype.JSONBOID:
		return "jsonb"
	case pgtype.DateOID:
		return "date"
	case pgtype.TimestampOID:
		return "timestamp"
	case pgtype.TimestamptzOID:
		return "timestamptz"
	case pgtype.IntervalOID:
		return "interval"
	case pgtype.TextArrayOID:
		return "text[]"
	default:
		return fmt.Sprintf("oid:%d", oid)
	}
}
