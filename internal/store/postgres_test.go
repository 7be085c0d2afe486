package store

import (
	"errors"
	"testing"
)

func TestMarshalGroups(t *testing.T) {
	b, err := marshalGroups(UpsertParams{Key: "k"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(b) != "[]" {
		t.Errorf("Expected [] for nil groups, got %s", b)
	}
}

func TestUnmarshalGroups(t *testing.T) {
	tests := []struct {
		name    string
		raw     []byte
		wantLen int
		wantErr bool
	}{
		{name: "nil", raw: nil, wantLen: 0},
		{name: "null", raw: []byte("null"), wantLen: 0},
		{name: "empty array", raw: []byte("[]"), wantLen: 0},
		{name: "two groups", raw: []byte(`[{"name":"a","weight":1},{"name":"b","weight":2.5}]`), wantLen: 2},
		{name: "invalid", raw: []byte("{"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Split
			err := unmarshalGroups(tt.raw, &s)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(s.Groups) != tt.wantLen {
				t.Fatalf("expected len %d, got %d", tt.wantLen, len(s.Groups))
			}
		})
	}
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *bool:
			*p = r.values[i].(bool)
		case *[]byte:
			*p = r.values[i].([]byte)
		}
	}
	return nil
}

func TestScanSplit(t *testing.T) {
	row := fakeRow{values: []any{
		"checkout", "desc", "01", true, "", []byte(`[{"name":"a","weight":3}]`), "prod", nil,
	}}

	s, err := scanSplit(row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Key != "checkout" || s.Env != "prod" || !s.CaseInsensitive {
		t.Errorf("unexpected split: %+v", s)
	}
	if len(s.Groups) != 1 || s.Groups[0].Weight != 3 {
		t.Errorf("unexpected groups: %+v", s.Groups)
	}

	boom := errors.New("boom")
	if _, err := scanSplit(fakeRow{err: boom}); !errors.Is(err, boom) {
		t.Errorf("Expected scan error, got %v", err)
	}
}
