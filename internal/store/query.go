package store

import (
	"database/sql"
	"fmt"
	"ksx/internal/object"
	"math"
	"strconv"
	"strings"
	"time"
)

// TypeMapper converts a scanned column value to a script value. Drivers
// return some numeric and text columns as []byte, so the declared column
// type decides how those are read.
func TypeMapper(v any, ct *sql.ColumnType) object.Object {
	if v == nil {
		return object.NULL
	}

	switch x := v.(type) {
	case int:
		return object.NewNumber(float64(x))
	case int64:
		return object.NewNumber(float64(x))
	case float64:
		return object.NewNumber(x)
	case bool:
		return object.NativeBool(x)
	case time.Time:
		return object.NewString(x.Format(time.RFC3339Nano))
	case []byte:
		if ct != nil {
			decl := strings.ToUpper(ct.DatabaseTypeName())
			if decl == "DECIMAL" || decl == "NEWDECIMAL" || decl == "NUMERIC" {
				if f, err := strconv.ParseFloat(string(x), 64); err == nil {
					return object.NewNumber(f)
				}
			}
		}
		return object.NewString(string(x))
	case string:
		return object.NewString(x)
	default:
		return object.NewString(fmt.Sprintf("%v", v))
	}
}

// sqlArg converts a script value to a query parameter.
func sqlArg(v object.Object) any {
	switch x := v.(type) {
	case *object.Number:
		if x.Value == math.Trunc(x.Value) && math.Abs(x.Value) < 1<<53 {
			return int64(x.Value)
		}
		return x.Value
	case *object.BigInt:
		return x.Value.String()
	case *object.Array, *object.Map:
		return object.ToString(v)
	}
	return object.ToGo(v)
}

func sqlArgs(args []object.Object) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = sqlArg(a)
	}
	return out
}

func scanRows(rows *sql.Rows) (*object.Array, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	result := &object.Array{}
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}
		row := object.NewMap()
		for i, col := range columns {
			var ct *sql.ColumnType
			if i < len(colTypes) {
				ct = colTypes[i]
			}
			row.Set(col, TypeMapper(values[i], ct))
		}
		result.Elements = append(result.Elements, row)
	}
	return result, rows.Err()
}

func queryArgs(name string, args []object.Object) (string, []any, error) {
	if len(args) == 0 {
		return "", nil, fmt.Errorf("%s: wrong number of arguments. got=0, want at least 1", name)
	}
	query, ok := args[0].(*object.String)
	if !ok {
		return "", nil, fmt.Errorf("%s: the SQL text must be a string", name)
	}
	return query.Value, sqlArgs(args[1:]), nil
}

// AppObject exposes the database to scripts as an object with query and
// exec methods. Placeholders are written as ? for every driver.
//
//	const rows = Db.query("SELECT file FROM script_runs WHERE status = ?", "completed");
func (s *Store) AppObject() *object.Map {
	db := object.NewMap()
	db.Set("driver", object.NewString(s.Driver))
	db.Set("query", &object.Builtin{
		Name: "query",
		Fn: func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			query, params, err := queryArgs("query", args)
			if err != nil {
				return nil, err
			}
			rows, err := s.DB.QueryContext(ctx.Context(), s.rebind(query), params...)
			if err != nil {
				return nil, err
			}
			defer rows.Close()
			return scanRows(rows)
		},
	})
	db.Set("exec", &object.Builtin{
		Name: "exec",
		Fn: func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			query, params, err := queryArgs("exec", args)
			if err != nil {
				return nil, err
			}
			res, err := s.DB.ExecContext(ctx.Context(), s.rebind(query), params...)
			if err != nil {
				return nil, err
			}
			out := object.NewMap()
			affected, _ := res.RowsAffected()
			out.Set("rowsAffected", object.NewNumber(float64(affected)))
			if id, err := res.LastInsertId(); err == nil && id > 0 {
				out.Set("lastInsertId", object.NewNumber(float64(id)))
			}
			return out, nil
		},
	})
	return db
}
