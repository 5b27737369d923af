package core

import (
	"testing"
)

func ptr(v float64) *float64 { return &v }

func TestTemplate_Render(t *testing.T) {
	raw := `{"total":{"sheet":"Sheet1","cell":"B1"},"label":"x","rows":{"sheet":"Sheet1","cell":"A1:A3"},"nested":[{"sheet":"Sheet1","cell":"C9"},true]}`

	tmpl, err := ParseTemplate("f.xlsx", []byte(raw))
	if err != nil {
		t.Fatalf("ParseTemplate: %v", err)
	}

	res := Result{
		"'[f.xlsx]SHEET1'!B1": ptr(42),
		"'[f.xlsx]SHEET1'!A1": ptr(1),
		"'[f.xlsx]SHEET1'!A2": nil,
		"'[f.xlsx]SHEET1'!A3": ptr(3.5),
	}
	got, err := tmpl.Render(res)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	want := `{"total":42,"label":"x","rows":[1,null,3.5],"nested":[null,true]}`
	if string(got) != want {
		t.Errorf("Render = %s, want %s", got, want)
	}
}

func TestTemplate_Outputs(t *testing.T) {
	tmpl, err := ParseTemplate("f.xlsx", []byte(`[{"sheet":"s","cell":"A1,B1"},{"a":{"sheet":"s","cell":"C1","unit":"eur"}}]`))
	if err != nil {
		t.Fatalf("ParseTemplate: %v", err)
	}
	got := tmpl.Outputs()
	want := []string{"'[f.xlsx]S'!A1", "'[f.xlsx]S'!B1", "'[f.xlsx]S'!C1"}
	if len(got) != len(want) {
		t.Fatalf("Outputs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Outputs[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTemplate_ScalarPassThrough(t *testing.T) {
	tmpl, err := ParseTemplate("f.xlsx", []byte(` "plain" `))
	if err != nil {
		t.Fatalf("ParseTemplate: %v", err)
	}
	got, _ := tmpl.Render(nil)
	if string(got) != `"plain"` {
		t.Errorf("Render = %s, want %q", got, `"plain"`)
	}
}

func TestParseTemplate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantCode string
	}{
		{"not json", `{"a":`, "VAL007"},
		{"trailing data", `{} {}`, "VAL007"},
		{"bad cell", `{"a":{"sheet":"s","cell":"ZZZZ1"}}`, "VAL005"},
		{"sheet not string", `{"a":{"sheet":1,"cell":"A1"}}`, "VAL005"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTemplate("f.xlsx", []byte(tt.raw))
			if err == nil {
				t.Fatal("expected error")
			}
			if got := MapError(err).Code; got != tt.wantCode {
				t.Errorf("code = %q, want %q", got, tt.wantCode)
			}
			if got := KindOf(err); tt.wantCode == "VAL005" && got != KindParse {
				t.Errorf("KindOf = %v, want %v", got, KindParse)
			}
		})
	}
}
