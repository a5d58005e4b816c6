package tool

import (
	"reflect"
	"testing"
)

func TestInputSchema(t *testing.T) {
	schema := InputSchema(map[string]FieldSpec{
		"year":       {Type: TypeString, Required: true, Description: "4-digit year"},
		"P_CATEGORY": {AnyOf: []FieldSpec{{Type: TypeString}, {Type: TypeArray, Items: &FieldSpec{Type: TypeString}}}},
		"p_d2c":      {Type: TypeString, Enum: []string{"Y", "N"}},
	})

	if schema["type"] != "object" {
		t.Fatalf("type = %v", schema["type"])
	}
	if got := schema["required"]; !reflect.DeepEqual(got, []string{"year"}) {
		t.Fatalf("required = %v", got)
	}
	props := schema["properties"].(map[string]any)
	year := props["year"].(map[string]any)
	if year["type"] != "string" || year["description"] != "4-digit year" {
		t.Fatalf("year = %v", year)
	}
	category := props["P_CATEGORY"].(map[string]any)
	if alts, ok := category["anyOf"].([]any); !ok || len(alts) != 2 {
		t.Fatalf("P_CATEGORY = %v", category)
	}
	if _, ok := category["type"]; ok {
		t.Fatal("anyOf field should not carry type")
	}
}

func TestInputSchemaOmitsEmptyRequired(t *testing.T) {
	schema := InputSchema(nil)
	if _, ok := schema["required"]; ok {
		t.Fatal("required present for empty inputs")
	}
}

func TestValidateArguments(t *testing.T) {
	inputs := map[string]FieldSpec{
		"order_number": {Type: TypeString, Required: true},
		"offset_days":  {Type: TypeInteger},
		"P_CATEGORY":   {AnyOf: []FieldSpec{{Type: TypeString}, {Type: TypeArray, Items: &FieldSpec{Type: TypeString}}}},
		"p_d2c":        {Type: TypeString, Enum: []string{"Y", "N"}},
	}
	tests := []struct {
		name      string
		args      Arguments
		wantCodes []string
	}{
		{name: "valid", args: Arguments{"order_number": "1", "offset_days": float64(3), "P_CATEGORY": []any{"a"}}},
		{name: "numeric string int", args: Arguments{"order_number": "1", "offset_days": "3"}},
		{name: "missing required", args: Arguments{}, wantCodes: []string{"REQUIRED"}},
		{name: "null required", args: Arguments{"order_number": nil}, wantCodes: []string{"REQUIRED"}},
		{name: "fractional int", args: Arguments{"order_number": "1", "offset_days": 1.5}, wantCodes: []string{"TYPE_MISMATCH"}},
		{name: "any of mismatch", args: Arguments{"order_number": "1", "P_CATEGORY": []any{float64(1)}}, wantCodes: []string{"TYPE_MISMATCH"}},
		{name: "enum", args: Arguments{"order_number": "1", "p_d2c": "maybe"}, wantCodes: []string{"ENUM_MISMATCH"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diags := validateArguments(inputs, tt.args)
			codes := make([]string, 0, len(diags))
			for _, d := range diags {
				codes = append(codes, d.Code)
			}
			if len(codes) == 0 && len(tt.wantCodes) == 0 {
				return
			}
			if !reflect.DeepEqual(codes, tt.wantCodes) {
				t.Fatalf("codes = %v, want %v", codes, tt.wantCodes)
			}
		})
	}
}
