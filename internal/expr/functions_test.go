package expr

import (
	"testing"

	"github.com/nlstn/go-odata-client/internal/edm"
)

func versionBounds(m FunctionMapping) (edm.Version, edm.Version) {
	lo, hi := m.MinVersion, m.MaxVersion
	if lo == 0 {
		lo = edm.V1
	}
	if hi == 0 {
		hi = edm.V401
	}
	return lo, hi
}

func TestFunctionMappings_NoOverlap(t *testing.T) {
	mappings := FunctionMappings()
	for i := range mappings {
		for j := i + 1; j < len(mappings); j++ {
			a, b := mappings[i], mappings[j]
			if a.Name != b.Name || a.Arity != b.Arity {
				continue
			}
			aLo, aHi := versionBounds(a)
			bLo, bHi := versionBounds(b)
			if max(aLo, bLo) <= min(aHi, bHi) {
				t.Errorf("Rules for %s/%d overlap: [%s,%s] and [%s,%s]", a.Name, a.Arity, aLo, aHi, bLo, bHi)
			}
		}
	}
}

func TestFunctionMappings_ReturnsCopy(t *testing.T) {
	mappings := FunctionMappings()
	mappings[0].Name = "Changed"
	if LookupFunction("Changed", mappings[0].Arity, edm.V4) != nil {
		t.Error("Expected FunctionMappings to return a copy")
	}
}

func TestLookupFunction_VersionGating(t *testing.T) {
	tests := []struct {
		name     string
		arity    int
		version  edm.Version
		expected string
	}{
		{"Contains", 1, edm.V4, "contains"},
		{"Contains", 1, edm.V401, "contains"},
		{"Contains", 1, edm.V3, "substringof"},
		{"Contains", 1, edm.V1, "substringof"},
		{"Date", 0, edm.V4, "date"},
		{"Date", 0, edm.V3, ""},
		{"TimeOfDay", 0, edm.V4, "time"},
		{"Length", 0, edm.V2, "length"},
		{"Length", 1, edm.V4, ""},
		{"Substring", 2, edm.V4, "substring"},
		{"Round", 1, edm.V4, "round"},
		{"Unknown", 0, edm.V4, ""},
	}
	for _, tt := range tests {
		m := LookupFunction(tt.name, tt.arity, tt.version)
		got := ""
		if m != nil {
			got, _ = m.Map(Ref("caller"), make([]Node, tt.arity))
		}
		if got != tt.expected {
			t.Errorf("%s/%d at %s: expected %q, got %q", tt.name, tt.arity, tt.version, tt.expected, got)
		}
	}
}

func TestFunctionMapping_ArgumentOrder(t *testing.T) {
	caller, arg := Ref("Name"), Lit("x")

	_, args := LookupFunction("Contains", 1, edm.V3).Map(caller, []Node{arg})
	if len(args) != 2 || args[0] != Node(arg) || args[1] != Node(caller) {
		t.Errorf("Expected substringof to take the argument first, got %v", args)
	}

	_, args = LookupFunction("StartsWith", 1, edm.V4).Map(caller, []Node{arg})
	if len(args) != 2 || args[0] != Node(caller) {
		t.Errorf("Expected bound functions to take the caller first, got %v", args)
	}

	_, args = LookupFunction("Concat", 2, edm.V4).Map(nil, []Node{caller, arg})
	if len(args) != 2 || args[0] != Node(caller) {
		t.Errorf("Expected static functions to keep their arguments, got %v", args)
	}
}

func TestLookupOperator(t *testing.T) {
	in := In(Ref("Id"), []int{1, 2})
	if LookupOperator(in, edm.V4) == nil {
		t.Error("Expected the in operator for a collection literal caller")
	}
	if LookupOperator(in, edm.V3) != nil {
		t.Error("Expected no in operator before V4")
	}
	if LookupOperator(Contains(Ref("Name"), Lit("a")), edm.V4) != nil {
		t.Error("Expected a property caller to use the contains function")
	}
	if LookupOperator(Contains(Lit("abc"), Lit("a")), edm.V4) != nil {
		t.Error("Expected a string literal caller to use the contains function")
	}
	if LookupOperator(Contains(Lit([]byte{1}), Lit(1)), edm.V4) != nil {
		t.Error("Expected a binary literal caller to use the contains function")
	}
	ids := [3]int{1, 2, 3}
	if LookupOperator(In(Ref("Id"), &ids), edm.V4) == nil {
		t.Error("Expected a pointer to an array to be a collection literal")
	}
}

func TestIsConversionFunction(t *testing.T) {
	for _, name := range []string{"ToInt32", "ToString", "ToGuid", "ToDateTime"} {
		if !IsConversionFunction(name) {
			t.Errorf("Expected %s to be a conversion function", name)
		}
	}
	if IsConversionFunction("ToLower") {
		t.Error("Expected ToLower not to be a conversion function")
	}
}
