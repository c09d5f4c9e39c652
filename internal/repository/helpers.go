package repository

import (
	"database/sql"
	"encoding/json"
	"time"
)

// nullString は空文字列をNULLに変換する。
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullStringValue はsql.NullStringを文字列に変換する。NULLは空文字列になる。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// nullTime は*time.TimeをNULL許容値に変換する。
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullTimeValue はsql.NullTimeを*time.Timeに変換する。NULLはnilになる。
func nullTimeValue(nt sql.NullTime) *time.Time {
	if nt.Valid {
		t := nt.Time
		return &t
	}
	return nil
}

// nullInt は*intをNULL許容値に変換する。
func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

// nullIntValue はsql.NullInt64を*intに変換する。NULLはnilになる。
func nullIntValue(ni sql.NullInt64) *int {
	if ni.Valid {
		v := int(ni.Int64)
		return &v
	}
	return nil
}

// jsonStrings は文字列スライスをJSONB格納用のバイト列に変換する。
// nilスライスは空配列として格納する。
func jsonStrings(ss []string) ([]byte, error) {
	if ss == nil {
		ss = []string{}
	}
	return json.Marshal(ss)
}

// jsonStringsValue はJSONBバイト列を文字列スライスに変換する。
func jsonStringsValue(data []byte) ([]string, error) {
	if len(data) == 0 {
		return []string{}, nil
	}
	var ss []string
	if err := json.Unmarshal(data, &ss); err != nil {
		return nil, err
	}
	return ss, nil
}
