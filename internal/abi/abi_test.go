package abi

import (
	"encoding/json"
	"testing"

	"github.com/pulsevm/pulsevm/internal/codec"
	"github.com/pulsevm/pulsevm/internal/name"
)

func sampleDefinition() Definition {
	return Definition{
		Version: "pulsevm::abi/1.0",
		Types: []TypeDefinition{
			{NewTypeName: "account_name", Type: "name"},
		},
		Structs: []StructDefinition{
			{
				Name: "transfer",
				Base: "",
				Fields: []FieldDefinition{
					{Name: "from", Type: "account_name"},
					{Name: "to", Type: "account_name"},
					{Name: "quantity", Type: "asset"},
					{Name: "memo", Type: "string"},
				},
			},
		},
		Actions: []ActionDefinition{
			{Name: name.MustParse("transfer"), Type: "transfer", RicardianContract: ""},
		},
		Tables: []TableDefinition{
			{
				Name:      name.MustParse("accounts"),
				IndexType: "i64",
				KeyNames:  []string{"primary_key"},
				KeyTypes:  []string{"uint64"},
				Type:      "account",
			},
		},
		RicardianClauses: []ClausePair{{ID: "clause1", Body: "text"}},
		ErrorMessages:    []ErrorMessage{{ErrorCode: 1, ErrorMsg: "insufficient balance"}},
		Variants:         []VariantDefinition{{Name: "any_value", Types: []string{"int64", "string"}}},
		ActionResults:    []ActionResultDefinition{{Name: name.MustParse("transfer"), ResultType: "void"}},
	}
}

func TestDefinitionBinaryRoundTrip(t *testing.T) {
	want := sampleDefinition()
	e := codec.NewEncoder(0)
	want.MarshalCodec(e)

	got, err := ReadDefinition(codec.NewDecoder(e.Bytes()))
	if err != nil {
		t.Fatalf("ReadDefinition: %v", err)
	}

	if got.Version != want.Version {
		t.Fatalf("Version = %q, want %q", got.Version, want.Version)
	}
	if len(got.Structs) != 1 || len(got.Structs[0].Fields) != 4 {
		t.Fatalf("struct round trip mismatch: %+v", got.Structs)
	}
	if got.Actions[0].Name != want.Actions[0].Name {
		t.Fatalf("action name mismatch: got %v want %v", got.Actions[0].Name, want.Actions[0].Name)
	}
	if got.Tables[0].Type != "account" {
		t.Fatalf("table type mismatch: %+v", got.Tables[0])
	}
	if got.ErrorMessages[0].ErrorCode != 1 {
		t.Fatalf("error message mismatch: %+v", got.ErrorMessages[0])
	}
}

func TestPackJSONAndUnpack(t *testing.T) {
	want := sampleDefinition()
	raw, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}

	packed, err := PackJSON(raw)
	if err != nil {
		t.Fatalf("PackJSON: %v", err)
	}

	got, err := Unpack(packed)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if got.Version != want.Version {
		t.Fatalf("Version = %q, want %q", got.Version, want.Version)
	}
	if got.Tables[0].Name != want.Tables[0].Name {
		t.Fatalf("table name = %v, want %v", got.Tables[0].Name, want.Tables[0].Name)
	}
}

func TestDefinitionJSONNameIsTextual(t *testing.T) {
	def := sampleDefinition()
	raw, err := json.Marshal(def)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	if !jsonContains(raw, `"name":"accounts"`) {
		t.Fatalf("expected table name to be rendered as text, got %s", raw)
	}
}

func jsonContains(raw []byte, needle string) bool {
	return len(raw) > 0 && indexOf(string(raw), needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

func TestGetTableType(t *testing.T) {
	def := sampleDefinition()
	typ, ok := def.GetTableType(name.MustParse("accounts"))
	if !ok || typ != "account" {
		t.Fatalf("GetTableType(accounts) = (%q, %v), want (account, true)", typ, ok)
	}
	if _, ok := def.GetTableType(name.MustParse("missing")); ok {
		t.Fatalf("GetTableType(missing) should not be found")
	}
}
