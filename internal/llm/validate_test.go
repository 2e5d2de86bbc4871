package llm

import "testing"

func TestValidateJSON(t *testing.T) {
	schema := ObjectSchema(map[string]any{
		"name":   RequiredStringProp(),
		"amount": NonNegativeNumberProp(),
		"kind":   EnumProp([]string{"a", "b"}),
		"note":   NullableStringProp(),
	}, []string{"name", "amount"})
	compiled, err := CompileSchema(schema)
	if err != nil {
		t.Fatalf("CompileSchema: %v", err)
	}

	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{name: "valid", data: `{"name":"x","amount":1,"kind":"a","note":null}`},
		{name: "missing required", data: `{"name":"x"}`, wantErr: true},
		{name: "blank required", data: `{"name":"   ","amount":1}`, wantErr: true},
		{name: "negative", data: `{"name":"x","amount":-1}`, wantErr: true},
		{name: "enum violation", data: `{"name":"x","amount":1,"kind":"c"}`, wantErr: true},
		{name: "unknown key", data: `{"name":"x","amount":1,"extra":true}`, wantErr: true},
		{name: "not json", data: `{`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateJSON(compiled, []byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
