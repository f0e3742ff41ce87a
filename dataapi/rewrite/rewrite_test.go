package rewrite

import (
	"database/sql"
	"errors"
	"reflect"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/tomyedwab/dataapi/dataapi/types"
)

func TestRewriteLeavesPlainSQLUntouched(t *testing.T) {
	for _, q := range []string{
		"SELECT 1",
		"",
		"SELECT * FROM doc WHERE id = 3",
		"INSERT INTO doc (content) VALUES ('a:b')",
		`SELECT "time is 10:30"`,
		"SELECT 'unterminated :name",
		"SELECT 'héllo wörld' -- ünïcode",
		"SELECT a : b",
		"SELECT x FROM t WHERE y = :",
		"SELECT :_private",
	} {
		got := Rewrite(q)
		if got.SQL != q {
			t.Errorf("Rewrite(%q) changed SQL to %q", q, got.SQL)
		}
		if len(got.Names) != 0 {
			t.Errorf("Rewrite(%q) found parameters %v", q, got.Names)
		}
	}
}

func TestRewriteCanonicalNames(t *testing.T) {
	tests := []struct {
		in        string
		wantSQL   string
		wantNames map[string]string
	}{
		{
			in:        "SELECT :a, :b, :a",
			wantSQL:   "SELECT :q0, :q1, :q0",
			wantNames: map[string]string{"a": "q0", "b": "q1"},
		},
		{
			in:        "UPDATE doc SET content = :content_1 WHERE id=:id",
			wantSQL:   "UPDATE doc SET content = :q0 WHERE id=:q1",
			wantNames: map[string]string{"content_1": "q0", "id": "q1"},
		},
		{
			in:        "INSERT INTO doc (content, other) VALUES ('testing''the\\'content value', :value)",
			wantSQL:   "INSERT INTO doc (content, other) VALUES ('testing''the\\'content value', :q0)",
			wantNames: map[string]string{"value": "q0"},
		},
		{
			in:        `SELECT ':inside', ":also", :outside`,
			wantSQL:   `SELECT ':inside', ":also", :q0`,
			wantNames: map[string]string{"outside": "q0"},
		},
		{
			in:        `SELECT \:escaped, :real`,
			wantSQL:   `SELECT \:escaped, :q0`,
			wantNames: map[string]string{"real": "q0"},
		},
		{
			in:        "SELECT :a:b",
			wantSQL:   "SELECT :q0:q1",
			wantNames: map[string]string{"a": "q0", "b": "q1"},
		},
		{
			in:        "SELECT :1st",
			wantSQL:   "SELECT :q0",
			wantNames: map[string]string{"1st": "q0"},
		},
		{
			in:        "SELECT :a'x:y'",
			wantSQL:   "SELECT :q0'x:y'",
			wantNames: map[string]string{"a": "q0"},
		},
		{
			in:        "SELECT a::int",
			wantSQL:   "SELECT a::q0",
			wantNames: map[string]string{"int": "q0"},
		},
		{
			in:        "SELECT 'ü', :ñame, :name",
			wantSQL:   "SELECT 'ü', :ñame, :q0",
			wantNames: map[string]string{"name": "q0"},
		},
	}
	for _, tt := range tests {
		got := Rewrite(tt.in)
		if got.SQL != tt.wantSQL {
			t.Errorf("Rewrite(%q): expected SQL %q, got %q", tt.in, tt.wantSQL, got.SQL)
		}
		if !reflect.DeepEqual(got.Names, tt.wantNames) {
			t.Errorf("Rewrite(%q): expected names %v, got %v", tt.in, tt.wantNames, got.Names)
		}
	}
}

func TestRewriteIsIdempotent(t *testing.T) {
	first := Rewrite("SELECT :b, :a, :b FROM t WHERE c = ':x'")
	second := Rewrite(first.SQL)
	if second.SQL != first.SQL {
		t.Errorf("Rewriting canonical SQL changed it: %q -> %q", first.SQL, second.SQL)
	}
	for canonical, again := range second.Names {
		if canonical != again {
			t.Errorf("Expected canonical name %s to map to itself, got %s", canonical, again)
		}
	}
}

func TestBindDropsUnknownNames(t *testing.T) {
	names := map[string]string{"id": "q0", "content": "q1"}
	params := []types.SqlParameter{
		{Name: "id", Value: types.LongValue(3)},
		{Name: "content", Value: types.StringValue("hi")},
		{Name: "unused", Value: types.LongValue(9)},
	}
	got := Bind(names, params)
	want := map[string]any{"q0": int64(3), "q1": "hi"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	if got := Bind(map[string]string{}, params); len(got) != 0 {
		t.Errorf("Expected no bound parameters, got %v", got)
	}
}

func TestBindConversions(t *testing.T) {
	names := map[string]string{"a": "q0", "b": "q1", "c": "q2", "d": "q3", "e": "q4", "f": "q5"}
	got := Bind(names, []types.SqlParameter{
		{Name: "a", Value: types.BlobValue([]byte("raw"))},
		{Name: "b", Value: types.BooleanValue(true)},
		{Name: "c", Value: types.BooleanValue(false)},
		{Name: "d", Value: types.DoubleValue(0.5)},
		{Name: "e", Value: types.NullValue()},
		{Name: "f", Value: types.LongValue(-4)},
	})
	want := map[string]any{
		"q0": []byte("raw"),
		"q1": int64(1),
		"q2": int64(0),
		"q3": 0.5,
		"q4": nil,
		"q5": int64(-4),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestCompile(t *testing.T) {
	canonical := Rewrite("SELECT :b, ':a', :a, :b").SQL
	params := map[string]any{"q0": "B", "q1": int64(1)}

	query, args, err := Compile(canonical, params, sqlx.QUESTION)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if query != "SELECT ?, ':a', ?, ?" {
		t.Errorf("Unexpected query: %s", query)
	}
	if !reflect.DeepEqual(args, []any{"B", int64(1), "B"}) {
		t.Errorf("Unexpected args: %v", args)
	}

	query, _, err = Compile(canonical, params, sqlx.DOLLAR)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if query != "SELECT $1, ':a', $2, $3" {
		t.Errorf("Unexpected query: %s", query)
	}

	query, args, err = Compile(canonical, params, sqlx.NAMED)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if query != canonical {
		t.Errorf("Expected named query to stay canonical, got %s", query)
	}
	if first, ok := args[0].(sql.NamedArg); !ok || first.Name != "q0" {
		t.Errorf("Expected named arg q0, got %v", args[0])
	}
}

func TestCompileMissingParameter(t *testing.T) {
	_, _, err := Compile("SELECT :q0, :q1", map[string]any{"q0": int64(1)}, sqlx.QUESTION)
	if !errors.Is(err, ErrMissingParameter) {
		t.Fatalf("Expected ErrMissingParameter, got %v", err)
	}
}

func TestReturnsRows(t *testing.T) {
	tests := map[string]bool{
		"SELECT 1":                             true,
		"  select * from doc":                  true,
		"(SELECT 1) UNION (SELECT 2)":          true,
		"-- comment\nSHOW TABLES":              true,
		"/* hint */ DESCRIBE doc":              true,
		"# mysql comment\nexplain select 1":    true,
		"WITH x AS (SELECT 1) SELECT * FROM x": true,
		"INSERT INTO doc VALUES (1)":           false,
		"UPDATE doc SET a = 1":                 false,
		"CREATE TABLE doc (id INT)":            false,
		"USE mysql":                            false,
		"":                                     false,
		"-- only a comment":                    false,
	}
	for q, want := range tests {
		if got := ReturnsRows(q); got != want {
			t.Errorf("ReturnsRows(%q) = %v, expected %v", q, got, want)
		}
	}
}

func TestReturnsRowsReturningAndCall(t *testing.T) {
	tests := []struct {
		sql  string
		want bool
	}{
		{"INSERT INTO doc (content) VALUES ('x') RETURNING id, content", true},
		{"delete from doc where id = 1 returning *", true},
		{"UPDATE doc SET content = :c\nRETURNING\tid", true},
		{"CALL refresh_totals()", true},
		{"  call refresh_totals(:id)", true},
		{"INSERT INTO doc (content) VALUES ('RETURNING id')", false},
		{`INSERT INTO doc (content) VALUES ("a returning b")`, false},
		{"INSERT INTO doc (content) VALUES ('it''s returning')", false},
		{"UPDATE doc SET returning_count = 1", false},
		{"UPDATE doc SET not_returning = 1", false},
	}
	for _, tt := range tests {
		if got := ReturnsRows(tt.sql); got != tt.want {
			t.Errorf("ReturnsRows(%q) = %v, expected %v", tt.sql, got, tt.want)
		}
	}
}

func TestPlainTextBlanksQuotedSpans(t *testing.T) {
	got := plainText(`SELECT 'a''b', "c", d\'e`)
	want := `SELECT       ,    , d  e`
	if got != want {
		t.Errorf("plainText = %q, expected %q", got, want)
	}
}
