package expr

import (
	"errors"
	"math"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nlstn/go-odata-client/internal/edm"
	"github.com/nlstn/go-odata-client/internal/metadata"
	"github.com/nlstn/go-odata-client/internal/schema"
	"github.com/nlstn/go-odata-client/internal/typecache"
)

type AddressType int

const (
	AddressPrivate AddressType = iota
	AddressCorporate
)

func (AddressType) EnumMembers() []typecache.EnumMember {
	return []typecache.EnumMember{{Name: "Private", Value: 0}, {Name: "Corporate", Value: 1}}
}

type Permission int

const (
	PermissionRead  Permission = 1
	PermissionWrite Permission = 2
)

type ProductCode string

func newTestSession(t *testing.T, settings Settings) Session {
	t.Helper()
	types := typecache.New("NorthwindModel")
	if _, err := types.RegisterEnum(AddressType(0)); err != nil {
		t.Fatalf("RegisterEnum failed: %v", err)
	}
	if _, err := types.RegisterEnum(Permission(0), typecache.WithFlags(), typecache.WithMembers(
		typecache.EnumMember{Name: "Read", Value: 1},
		typecache.EnumMember{Name: "Write", Value: 2},
	)); err != nil {
		t.Fatalf("RegisterEnum failed: %v", err)
	}
	return NewSession(nil, types, settings, nil)
}

func formatV4(t *testing.T, node Node) string {
	t.Helper()
	got, err := Format(node, NewContext(newTestSession(t, Settings{}), nil))
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	return got
}

func TestFormat_Scenarios(t *testing.T) {
	tests := []struct {
		name     string
		node     Node
		expected string
	}{
		{
			name:     "conjunction",
			node:     And(Eq(Ref("ProductId"), Lit(1)), Eq(Ref("ProductName"), Lit("Chai"))),
			expected: "ProductId eq 1 and ProductName eq 'Chai'",
		},
		{
			name:     "grouped disjunction",
			node:     And(Or(Eq(Ref("ProductId"), Lit(1)), Eq(Ref("ProductId"), Lit(2))), Eq(Ref("ProductName"), Lit("Chai"))),
			expected: "(ProductId eq 1 or ProductId eq 2) and ProductName eq 'Chai'",
		},
		{
			name:     "collection membership",
			node:     In(Ref("ProductName"), []string{"Chai", "Milk", "Water"}),
			expected: "ProductName in ('Chai','Milk','Water')",
		},
		{
			name:     "contains over tolower",
			node:     Contains(ToLower(Ref("ProductName")), Lit("ai")),
			expected: "contains(tolower(ProductName),'ai')",
		},
		{
			name: "all with enum",
			node: All("Collection", And(
				Eq(Ref("Address.Type"), Lit(AddressCorporate)),
				Gt(Ref("Price"), Lit(10)),
			)),
			expected: "Collection/all(x1:x1/Address/Type eq NorthwindModel.AddressType'Corporate' and x1/Price gt 10)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatV4(t, tt.node); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestFormat_TypedExpressions(t *testing.T) {
	created := time.Date(2013, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		node     Node
		expected string
	}{
		{Eq(Ref("ProductID"), Lit(1)), "ProductID eq 1"},
		{Ne(Ref("ProductID"), Lit(1)), "ProductID ne 1"},
		{Gt(Ref("ProductID"), Lit(1)), "ProductID gt 1"},
		{Ge(Ref("ProductID"), Lit(1.5)), "ProductID ge 1.5"},
		{Lt(Ref("ProductID"), Lit(1)), "ProductID lt 1"},
		{Le(Ref("ProductID"), Lit(1)), "ProductID le 1"},
		{Or(Eq(Ref("ProductName"), Lit("Chai")), Eq(Ref("ProductID"), Lit(1))), "ProductName eq 'Chai' or ProductID eq 1"},
		{Not(Eq(Ref("ProductName"), Lit("Chai"))), "not (ProductName eq 'Chai')"},
		{Eq(Add(Ref("ProductID"), Lit(1)), Lit(2)), "ProductID add 1 eq 2"},
		{Eq(Sub(Ref("ProductID"), Lit(1)), Lit(2)), "ProductID sub 1 eq 2"},
		{Eq(Mul(Ref("ProductID"), Lit(1)), Lit(2)), "ProductID mul 1 eq 2"},
		{Eq(Div(Ref("ProductID"), Lit(1)), Lit(2)), "ProductID div 1 eq 2"},
		{Eq(Mod(Ref("ProductID"), Lit(1)), Lit(2)), "ProductID mod 1 eq 2"},
		{Eq(Ref("Price"), Lit(decimal.RequireFromString("1.23"))), "Price eq 1.23"},
		{Eq(Ref("LinkID"), Lit(uuid.Nil)), "LinkID eq 00000000-0000-0000-0000-000000000000"},
		{Eq(Ref("Updated"), Lit(edm.DateTimeOffset{Time: created})), "Updated eq 2013-01-01T00:00:00Z"},
		{Eq(Ref("Period"), Lit(time.Hour + 2*time.Minute + 3*time.Second)), "Period eq duration'PT1H2M3S'"},
		{Eq(Length(Ref("ProductName")), Lit(4)), "length(ProductName) eq 4"},
		{Eq(ToLower(Ref("ProductName")), Lit("chai")), "tolower(ProductName) eq 'chai'"},
		{Eq(ToUpper(Ref("ProductName")), Lit("CHAI")), "toupper(ProductName) eq 'CHAI'"},
		{Eq(StartsWith(Ref("ProductName"), Lit("Ch")), Lit(true)), "startswith(ProductName,'Ch') eq true"},
		{Eq(EndsWith(Ref("ProductName"), Lit("Ch")), Lit(true)), "endswith(ProductName,'Ch') eq true"},
		{Contains(Ref("ProductName"), Lit("ai")), "contains(ProductName,'ai')"},
		{Not(Contains(Ref("ProductName"), Lit("ai"))), "not contains(ProductName,'ai')"},
		{Eq(IndexOf(Ref("ProductName"), Lit("ai")), Lit(1)), "indexof(ProductName,'ai') eq 1"},
		{Eq(Substring(Ref("ProductName"), Lit(1), nil), Lit("hai")), "substring(ProductName,1) eq 'hai'"},
		{Eq(Substring(Ref("ProductName"), Lit(1), Lit(2)), Lit("ha")), "substring(ProductName,1,2) eq 'ha'"},
		{Eq(Replace(Ref("ProductName"), Lit("a"), Lit("o")), Lit("Choi")), "replace(ProductName,'a','o') eq 'Choi'"},
		{Eq(Trim(Ref("ProductName")), Lit("Chai")), "trim(ProductName) eq 'Chai'"},
		{Eq(Concat(Ref("ProductName"), Lit("Chai")), Lit("ChaiChai")), "concat(ProductName,'Chai') eq 'ChaiChai'"},
		{Eq(Day(Ref("CreationTime")), Lit(1)), "day(CreationTime) eq 1"},
		{Eq(Month(Ref("CreationTime")), Lit(2)), "month(CreationTime) eq 2"},
		{Eq(Year(Ref("CreationTime")), Lit(3)), "year(CreationTime) eq 3"},
		{Eq(Hour(Ref("CreationTime")), Lit(4)), "hour(CreationTime) eq 4"},
		{Eq(Minute(Ref("CreationTime")), Lit(5)), "minute(CreationTime) eq 5"},
		{Eq(Second(Ref("CreationTime")), Lit(6)), "second(CreationTime) eq 6"},
		{Eq(Date(Ref("CreationTime")), Lit(edm.Date{Year: 2013, Month: time.January, Day: 1})), "date(CreationTime) eq 2013-01-01"},
		{Eq(Round(Ref("Price")), Lit(decimal.NewFromInt(1))), "round(Price) eq 1"},
		{Eq(Floor(Ref("Price")), Lit(decimal.NewFromInt(1))), "floor(Price) eq 1"},
		{Eq(Ceiling(Ref("Price")), Lit(decimal.NewFromInt(2))), "ceiling(Price) eq 2"},
		{Eq(Static("Round", Ref("Price")), Lit(decimal.NewFromInt(1))), "round(Price) eq 1"},
		{Eq(Ref("Nested.ProductID"), Lit(1)), "Nested/ProductID eq 1"},
		{Eq(Ref("Nested.ProductName.Length"), Lit(4)), "length(Nested/ProductName) eq 4"},
		{Eq(Call(Ref("ProductName"), FuncToString), Lit("Chai")), "ProductName eq 'Chai'"},
		{Eq(Ref("Address.Type"), Lit(AddressCorporate)), "Address/Type eq NorthwindModel.AddressType'Corporate'"},
		{HasFlag(Ref("Address.Type"), AddressCorporate), "Address/Type has NorthwindModel.AddressType'Corporate'"},
		{Eq(Ref("Rights"), Lit(PermissionRead | PermissionWrite)), "Rights eq NorthwindModel.Permission'Read,Write'"},
		{In(Ref("ProductID"), []int{1, 2, 3}), "ProductID in (1,2,3)"},
		{In(Ref("Nested.ProductName"), []string{"Chai", "Milk", "Water"}), "Nested/ProductName in ('Chai','Milk','Water')"},
		{In(ToLower(Ref("ProductName")), []string{"chai", "milk"}), "tolower(ProductName) in ('chai','milk')"},
		{In(Ref("Address.Type"), []AddressType{AddressPrivate, AddressCorporate}), "Address/Type in (NorthwindModel.AddressType'Private',NorthwindModel.AddressType'Corporate')"},
		{
			And(Ge(Ref("CreationTime"), Lit(created)), Lt(Ref("CreationTime"), Lit(time.Date(2014, 2, 2, 0, 0, 0, 0, time.UTC)))),
			"CreationTime ge 2013-01-01T00:00:00Z and CreationTime lt 2014-02-02T00:00:00Z",
		},
		{
			And(
				Or(Eq(Ref("ProductName"), Lit("Chai")), Eq(Ref("ProductID"), Lit(1))),
				Or(Eq(Ref("ProductName"), Lit("Kaffe")), Eq(Ref("ProductID"), Lit(2))),
			),
			"(ProductName eq 'Chai' or ProductID eq 1) and (ProductName eq 'Kaffe' or ProductID eq 2)",
		},
		{Eq(Ref("ProductName"), Null()), "ProductName eq null"},
		{Eq(Ref("ProductName"), nil), "ProductName eq null"},
		{Gt(Negate(Ref("Price")), Lit(1)), "- Price gt 1"},
		{Negate(Add(Ref("Price"), Lit(1))), "- (Price add 1)"},
		{Eq(Mul(Add(Ref("A"), Ref("B")), Ref("C")), Lit(1)), "(A add B) mul C eq 1"},
		{Eq(Ref("Name"), Lit(ProductCode("O'Neil"))), "Name eq 'O''Neil'"},
	}
	for _, tt := range tests {
		if got := formatV4(t, tt.node); got != tt.expected {
			t.Errorf("Expected %q, got %q", tt.expected, got)
		}
	}
}

func TestFormat_PrecedenceGrouping(t *testing.T) {
	binaryOps := []Operator{
		OpMultiply, OpDivide, OpModulo, OpAdd, OpSubtract,
		OpGreaterThan, OpGreaterOrEqual, OpLessThan, OpLessOrEqual,
		OpEqual, OpNotEqual, OpAnd, OpOr,
	}
	for _, outer := range binaryOps {
		for _, inner := range binaryOps {
			node := Binary(outer, Binary(inner, Ref("A"), Ref("B")), Ref("C"))
			innerText := "A " + inner.Token() + " B"
			if outer.Precedence() < inner.Precedence() {
				innerText = "(" + innerText + ")"
			}
			expected := innerText + " " + outer.Token() + " C"
			if got := formatV4(t, node); got != expected {
				t.Errorf("%s over %s: expected %q, got %q", outer, inner, expected, got)
			}

			node = Binary(outer, Ref("C"), Binary(inner, Ref("A"), Ref("B")))
			innerText = "A " + inner.Token() + " B"
			sameAssociative := outer == inner && (outer == OpAnd || outer == OpOr || outer == OpAdd || outer == OpMultiply)
			if outer.Precedence() < inner.Precedence() || (outer.Precedence() == inner.Precedence() && !sameAssociative) {
				innerText = "(" + innerText + ")"
			}
			expected = "C " + outer.Token() + " " + innerText
			if got := formatV4(t, node); got != expected {
				t.Errorf("%s over right %s: expected %q, got %q", outer, inner, expected, got)
			}
		}
	}

	if got := formatV4(t, Or(And(Ref("A"), Ref("B")), Ref("C"))); got != "A and B or C" {
		t.Errorf("Expected And inside Or to stay ungrouped, got %q", got)
	}
	if got := formatV4(t, Eq(Ref("A"), Eq(Ref("B"), Ref("C")))); got != "A eq (B eq C)" {
		t.Errorf("Expected a right-nested eq to be grouped, got %q", got)
	}
	if got := formatV4(t, Sub(Ref("A"), Sub(Ref("B"), Ref("C")))); got != "A sub (B sub C)" {
		t.Errorf("Expected a right-nested sub to be grouped, got %q", got)
	}
	if got := formatV4(t, Add(Ref("A"), Add(Ref("B"), Ref("C")))); got != "A add B add C" {
		t.Errorf("Expected a right-nested add to stay ungrouped, got %q", got)
	}
}

func TestFormat_QuantifierNaming(t *testing.T) {
	node := Any("Collection", Any("Collection", Eq(Ref("Id"), Lit(2))))
	expected := "Collection/any(x1:x1/Collection/any(x2:x2/Id eq 2))"
	if got := formatV4(t, node); got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}

	siblings := And(
		Any("Orders", Gt(Ref("Total"), Lit(1))),
		All("Orders", Lt(Ref("Total"), Lit(100))),
	)
	expected = "Orders/any(x1:x1/Total gt 1) and Orders/all(x2:x2/Total lt 100)"
	if got := formatV4(t, siblings); got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}

	if got := formatV4(t, Any("Orders", nil)); got != "Orders/any()" {
		t.Errorf("Expected Orders/any(), got %q", got)
	}
	if got := formatV4(t, Any("Tags", Eq(It(), Lit("Chai")))); got != "Tags/any(x1:x1 eq 'Chai')" {
		t.Errorf("Expected the range variable itself, got %q", got)
	}
	if got := formatV4(t, Any("Orders", Eq(Length(Ref("Name")), Lit(3)))); got != "Orders/any(x1:length(x1/Name) eq 3)" {
		t.Errorf("Expected scoped function argument, got %q", got)
	}

	deep := Any("L1", Any("L2", Any("L3", Any("L4", Any("L5", Any("L6", Any("L7", Any("L8", Any("L9", Any("L10", Eq(Ref("Id"), Lit(1))))))))))))
	got := formatV4(t, deep)
	expected = "L1/any(x1:x1/L2/any(x2:x2/L3/any(x3:x3/L4/any(x4:x4/L5/any(x5:x5/L6/any(x6:x6/L7/any(x7:x7/L8/any(x8:x8/L9/any(x9:x9/L10/any(x1:x1/Id eq 1))))))))))"
	if got != expected {
		t.Errorf("Expected cyclic names, got %q", got)
	}
}

func TestFormat_ConcurrentCallsAreIndependent(t *testing.T) {
	ctx := NewContext(newTestSession(t, Settings{}), nil)
	node := Any("Orders", Any("Details", Gt(Ref("Quantity"), Lit(1))))
	expected := "Orders/any(x1:x1/Details/any(x2:x2/Quantity gt 1))"

	var wg sync.WaitGroup
	results := make(chan string, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := Format(node, ctx)
			if err != nil {
				results <- err.Error()
				return
			}
			results <- got
		}()
	}
	wg.Wait()
	close(results)
	for got := range results {
		if got != expected {
			t.Errorf("Expected %q, got %q", expected, got)
		}
	}
}

func TestFormat_VersionLiterals(t *testing.T) {
	utc := time.Date(2013, 1, 1, 0, 0, 0, 0, time.UTC)
	offset := time.Date(2013, 1, 1, 10, 30, 0, 0, time.FixedZone("", 2*60*60))
	id := uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e")
	five := 5
	var missing *int

	tests := []struct {
		name string
		v    any
		v4   string
		v3   string
	}{
		{"nil", nil, "null", "null"},
		{"bool", true, "true", "true"},
		{"int", 1, "1", "1"},
		{"int16", int16(7), "7", "7"},
		{"int64", int64(1), "1", "1L"},
		{"uint32", uint32(1), "1", "1L"},
		{"float64", 1.5, "1.5", "1.5d"},
		{"integral float64", 1.0, "1.0", "1.0d"},
		{"float32", float32(1.5), "1.5", "1.5f"},
		{"large float64", 1234567.0, "1234567.0", "1234567.0d"},
		{"negative float64", -98765.25, "-98765.25", "-98765.25d"},
		{"small float64", 0.0001, "0.0001", "0.0001d"},
		{"huge float64", 1e20, "1E+20", "1E+20d"},
		{"tiny float64", 0.000001, "1E-06", "1E-06d"},
		{"large float32", float32(1e8), "1E+08", "1E+08f"},
		{"infinity", math.Inf(1), "INF", "INF"},
		{"nan", math.NaN(), "NaN", "NaN"},
		{"decimal", decimal.RequireFromString("1.23"), "1.23", "1.23M"},
		{"string", "O'Neil", "'O''Neil'", "'O''Neil'"},
		{"time", utc, "2013-01-01T00:00:00Z", "datetime'2013-01-01T00:00:00'"},
		{"time with offset", offset, "2013-01-01T10:30:00+02:00", "datetime'2013-01-01T10:30:00'"},
		{"datetimeoffset", edm.DateTimeOffset{Time: utc}, "2013-01-01T00:00:00Z", "datetimeoffset'2013-01-01T00:00:00Z'"},
		{"date", edm.Date{Year: 2013, Month: time.January, Day: 1}, "2013-01-01", "datetime'2013-01-01T00:00:00'"},
		{"duration", time.Hour + 2*time.Minute + 3*time.Second, "duration'PT1H2M3S'", "time'PT1H2M3S'"},
		{"long duration", 36 * time.Hour, "duration'P1DT12H'", "time'P1DT12H'"},
		{"zero duration", time.Duration(0), "duration'PT0S'", "time'PT0S'"},
		{"fractional duration", 1500 * time.Millisecond, "duration'PT1.5S'", "time'PT1.5S'"},
		{"guid", id, "0f8fad5b-d9cb-469f-a165-70867728950e", "guid'0f8fad5b-d9cb-469f-a165-70867728950e'"},
		{"binary", []byte{1, 2, 3}, "binary'AQID'", "X'010203'"},
		{"enum", AddressCorporate, "NorthwindModel.AddressType'Corporate'", "'Corporate'"},
		{"enum value", edm.EnumValue{TypeName: "NS.Color", Member: "Red"}, "NS.Color'Red'", "'Red'"},
		{"type name", edm.TypeName("NorthwindModel.Ship"), "'NorthwindModel.Ship'", "'NorthwindModel.Ship'"},
		{"geography", edm.GeographyPoint{Longitude: 1.5, Latitude: 2}, "geography'SRID=4326;POINT(1.5 2)'", "geography'SRID=4326;POINT(1.5 2)'"},
		{"pointer", &five, "5", "5"},
		{"nil pointer", missing, "null", "null"},
		{"named string", ProductCode("A1"), "'A1'", "'A1'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, version := range []edm.Version{edm.V4, edm.V3} {
				expected := tt.v4
				if version == edm.V3 {
					expected = tt.v3
				}
				got, err := Format(Lit(tt.v), NewContext(newTestSession(t, Settings{Version: version}), nil))
				if err != nil {
					t.Fatalf("%s: Format failed: %v", version, err)
				}
				if got != expected {
					t.Errorf("%s: expected %q, got %q", version, expected, got)
				}
			}
		})
	}
}

func TestFormat_TypeLiteral(t *testing.T) {
	type Ship struct{ ShipName string }
	got := formatV4(t, IsOf(nil, reflect.TypeOf(Ship{})))
	if got != "isof('NorthwindModel.Ship')" {
		t.Errorf("Expected isof('NorthwindModel.Ship'), got %q", got)
	}
	got = formatV4(t, IsOf(Ref("Transport"), "NorthwindModel.Ship"))
	if got != "isof(Transport,'NorthwindModel.Ship')" {
		t.Errorf("Expected isof(Transport,'NorthwindModel.Ship'), got %q", got)
	}
	got = formatV4(t, Eq(Cast(Ref("Price"), "Edm.Int32"), Lit(3)))
	if got != "cast(Price,'Edm.Int32') eq 3" {
		t.Errorf("Expected cast(Price,'Edm.Int32') eq 3, got %q", got)
	}
}

func TestFormat_EnumPrefixFree(t *testing.T) {
	session := newTestSession(t, Settings{EnumPrefixFree: true})
	got, err := Format(Eq(Ref("Address.Type"), Lit(AddressCorporate)), NewContext(session, nil))
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if got != "Address/Type eq 'Corporate'" {
		t.Errorf("Expected prefix free enum, got %q", got)
	}
}

func TestFormat_PreV4Functions(t *testing.T) {
	ctx := NewContext(newTestSession(t, Settings{Version: edm.V3}), nil)

	got, err := Format(Contains(Ref("ProductName"), Lit("ai")), ctx)
	if err != nil || got != "substringof('ai',ProductName)" {
		t.Errorf("Expected substringof('ai',ProductName), got %q (%v)", got, err)
	}
	got, err = Format(Ge(Ref("ProductID"), Lit(1.5)), ctx)
	if err != nil || got != "ProductID ge 1.5d" {
		t.Errorf("Expected ProductID ge 1.5d, got %q (%v)", got, err)
	}
	if _, err := Format(In(Ref("ProductID"), []int{1, 2}), ctx); !errors.Is(err, ErrUnsupportedLiteral) {
		t.Errorf("Expected a collection literal outside in to fail, got %v", err)
	}
	if _, err := Format(Date(Ref("CreationTime")), ctx); !errors.Is(err, ErrUnsupportedFunction) {
		t.Errorf("Expected date() to be unavailable before V4, got %v", err)
	}
}

func TestFormat_Conversions(t *testing.T) {
	int64Type := reflect.TypeOf(int64(0))
	tests := []struct {
		name     string
		node     Node
		expected string
	}{
		{"widening", Eq(Ref("ProductID"), Convert(Lit(int16(5)), int64Type)), "ProductID eq 5"},
		{"enum discards conversion", Eq(Ref("Address.Type"), Convert(Lit(AddressCorporate), reflect.TypeOf(0))), "Address/Type eq NorthwindModel.AddressType'Corporate'"},
		{"to enum", Eq(Ref("Address.Type"), Convert(Lit(1), reflect.TypeOf(AddressType(0)))), "Address/Type eq NorthwindModel.AddressType'Corporate'"},
		{"failed conversion degrades", Eq(Ref("ProductID"), Convert(Lit("abc"), int64Type)), "ProductID eq 'abc'"},
		{"reference inner", Eq(Convert(Ref("ProductID"), int64Type), Lit(1)), "ProductID eq 1"},
		{"fold ToInt32", Eq(Ref("ProductID"), Static("ToInt32", Lit("5"))), "ProductID eq 5"},
		{"fold ToString", Eq(Ref("ProductName"), Static("ToString", Lit(42))), "ProductName eq '42'"},
		{"fold ToDecimal", Eq(Ref("Price"), Static("ToDecimal", Lit("1.50"))), "Price eq 1.5"},
		{"fold ToChar", Eq(Ref("Initial"), Static("ToChar", Lit('C'))), "Initial eq 'C'"},
		{"fold ToDateTime", Eq(Ref("CreationTime"), Static("ToDateTime", Lit("2013-01-01"))), "CreationTime eq 2013-01-01T00:00:00Z"},
		{"failed fold degrades", Eq(Ref("ProductID"), Static("ToInt32", Lit("abc"))), "ProductID eq 'abc'"},
		{"literal ToString", Eq(Call(Lit("Chai"), FuncToString), Ref("ProductName")), "'Chai' eq ProductName"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatV4(t, tt.node); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestConvert_ReportsConversionFailure(t *testing.T) {
	session := newTestSession(t, Settings{})
	_, err := ConvertValue(session, "abc", reflect.TypeOf(0))
	if !errors.Is(err, ErrConversionFailure) || !errors.Is(err, typecache.ErrConversion) {
		t.Errorf("Expected ConversionFailure wrapping ErrConversion, got %v", err)
	}
	out, err := ConvertValue(session, "12", reflect.TypeOf(0))
	if err != nil || out != 12 {
		t.Errorf("Expected 12, got %v (%v)", out, err)
	}
}

func TestFormat_DynamicProperties(t *testing.T) {
	ctx := NewContext(newTestSession(t, Settings{}), nil)
	ctx.DynamicContainerName = "Properties"

	tests := []struct {
		node     Node
		expected string
	}{
		{Eq(Index(Ref("Properties"), "Color"), Lit("Red")), "Color eq 'Red'"},
		{Eq(Index(Ref("Attributes"), "Color"), Lit("Red")), "Attributes.Color eq 'Red'"},
		{Eq(Ref("Properties.Color"), Lit("Red")), "Color eq 'Red'"},
		{Any("Variants", Eq(Index(Ref("Properties"), "Size"), Lit("L"))), "Variants/any(x1:x1/Size eq 'L')"},
	}
	for _, tt := range tests {
		got, err := Format(tt.node, ctx)
		if err != nil {
			t.Errorf("Format failed: %v", err)
			continue
		}
		if got != tt.expected {
			t.Errorf("Expected %q, got %q", tt.expected, got)
		}
	}
}

func TestFormat_Geospatial(t *testing.T) {
	point := Lit(edm.GeographyPoint{Longitude: 1, Latitude: 2})
	node := Lt(Distance(Ref("Location"), point), Lit(10))

	_, err := Format(node, NewContext(newTestSession(t, Settings{}), nil))
	if !errors.Is(err, ErrUnsupportedFunction) {
		t.Errorf("Expected geo functions to be disabled by default, got %v", err)
	}

	got, err := Format(node, NewContext(newTestSession(t, Settings{Geospatial: true}), nil))
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if got != "geo.distance(Location,geography'SRID=4326;POINT(1 2)') lt 10" {
		t.Errorf("Unexpected result %q", got)
	}
}

func TestFormatQueryOption(t *testing.T) {
	session := newTestSession(t, Settings{})

	got, err := FormatQueryOption(And(Eq(Ref("foo"), Lit(1)), Eq(Ref("bar"), Lit("x"))), NewContext(session, nil))
	if err != nil {
		t.Fatalf("FormatQueryOption failed: %v", err)
	}
	if got != "foo=1&bar='x'" {
		t.Errorf("Expected foo=1&bar='x', got %q", got)
	}

	invalid := []Node{
		Or(Eq(Ref("foo"), Lit(1)), Eq(Ref("bar"), Lit(2))),
		And(Gt(Ref("foo"), Lit(1)), Eq(Ref("bar"), Lit(2))),
		Not(Eq(Ref("foo"), Lit(1))),
		And(Eq(Ref("foo"), Lit(1)), Any("Orders", Gt(Ref("Id"), Lit(1)))),
		Any("Orders", Eq(Ref("Id"), Lit(1))),
		All("Orders", Eq(Ref("Id"), Lit(1))),
	}
	for _, node := range invalid {
		_, err := FormatQueryOption(node, NewContext(session, nil))
		if !errors.Is(err, ErrInvalidQueryOption) {
			t.Errorf("Expected ErrInvalidQueryOption, got %v", err)
		}
	}
}

func TestFormat_UnsupportedFunction(t *testing.T) {
	_, err := Format(Call(Ref("ProductName"), "Reverse"), NewContext(newTestSession(t, Settings{}), nil))
	var formatErr *FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("Expected *FormatError, got %v", err)
	}
	if formatErr.Kind != UnsupportedFunction || formatErr.Name != "Reverse" || formatErr.Arity != 0 {
		t.Errorf("Unexpected error details: %+v", formatErr)
	}
	if _, err := Format(Call(Ref("ProductName"), "ToInt32", Ref("Other")), nil); !errors.Is(err, ErrUnsupportedFunction) {
		t.Errorf("Expected conversion of a reference to be unsupported, got %v", err)
	}
}

func TestFormat_NilContext(t *testing.T) {
	got, err := Format(Eq(Ref("Nested.Name"), Lit("x")), nil)
	if err != nil || got != "Nested/Name eq 'x'" {
		t.Errorf("Expected Nested/Name eq 'x', got %q (%v)", got, err)
	}
}

func northwindMetadata(t *testing.T) metadata.Metadata {
	t.Helper()
	model := schema.NewModel("NorthwindModel").
		AddEntityType(schema.EntityType{
			Name: "Product",
			Key:  []string{"ProductID"},
			Properties: []schema.Property{
				{Name: "ProductID", Type: "Edm.Int32"},
				{Name: "ProductName", Type: "Edm.String"},
				{Name: "Date", Type: "Edm.Date"},
			},
			NavigationProperties: []schema.NavigationProperty{{Name: "Category", Type: "Category"}},
		}).
		AddEntityType(schema.EntityType{
			Name:                 "Category",
			Key:                  []string{"CategoryID"},
			Properties:           []schema.Property{{Name: "CategoryID", Type: "Edm.Int32"}, {Name: "CategoryName", Type: "Edm.String"}},
			NavigationProperties: []schema.NavigationProperty{{Name: "Products", Type: "Product", Collection: true}},
		}).
		AddEntityType(schema.EntityType{
			Name:                 "Order",
			Key:                  []string{"OrderID"},
			Properties:           []schema.Property{{Name: "OrderID", Type: "Edm.Int32"}, {Name: "ShipAddress", Type: "NorthwindModel.Address"}},
			NavigationProperties: []schema.NavigationProperty{{Name: "Details", Type: "OrderDetail", Collection: true}},
		}).
		AddEntityType(schema.EntityType{
			Name:                 "OrderDetail",
			Key:                  []string{"OrderID", "ProductID"},
			Properties:           []schema.Property{{Name: "Quantity", Type: "Edm.Int16"}},
			NavigationProperties: []schema.NavigationProperty{{Name: "Product", Type: "Product"}},
		}).
		AddEntityType(schema.EntityType{Name: "Person", Open: true, Key: []string{"Name"}, Properties: []schema.Property{{Name: "Name", Type: "Edm.String"}}}).
		AddComplexType(schema.ComplexType{Name: "Address", Properties: []schema.Property{
			{Name: "City", Type: "Edm.String"},
			{Name: "Type", Type: "NorthwindModel.AddressType"},
		}}).
		AddEntitySet("Products", "Product").
		AddEntitySet("Categories", "Category").
		AddEntitySet("Orders", "Order").
		AddEntitySet("OrderDetails", "OrderDetail").
		AddEntitySet("People", "Person")
	if err := model.Validate(); err != nil {
		t.Fatalf("Invalid test model: %v", err)
	}
	return metadata.NewCache(metadata.New(model))
}

func newMetadataContext(t *testing.T, collection string, settings Settings) *Context {
	t.Helper()
	md := northwindMetadata(t)
	types := typecache.New("NorthwindModel")
	if _, err := types.RegisterEnum(AddressType(0)); err != nil {
		t.Fatalf("RegisterEnum failed: %v", err)
	}
	root, err := md.GetEntityCollection(collection)
	if err != nil {
		t.Fatalf("GetEntityCollection(%q) failed: %v", collection, err)
	}
	return NewContext(NewSession(md, types, settings, nil), root)
}

func TestFormat_MetadataResolution(t *testing.T) {
	tests := []struct {
		collection string
		node       Node
		expected   string
	}{
		{"Products", Eq(Ref("productName"), Lit("Chai")), "ProductName eq 'Chai'"},
		{"Products", Eq(Ref("category.categoryName"), Lit("Beverages")), "Category/CategoryName eq 'Beverages'"},
		{"Products", Eq(Ref("ProductName.Length"), Lit(4)), "length(ProductName) eq 4"},
		{"Products", Eq(Ref("Date"), Lit(edm.Date{Year: 2013, Month: time.January, Day: 1})), "Date eq 2013-01-01"},
		{"Orders", Eq(Ref("shipAddress.city"), Lit("Oslo")), "ShipAddress/City eq 'Oslo'"},
		{"Orders", Eq(Ref("ShipAddress.Type"), Lit(AddressCorporate)), "ShipAddress/Type eq NorthwindModel.AddressType'Corporate'"},
		{"Orders", Any("details", Gt(Ref("quantity"), Lit(5))), "Details/any(x1:x1/Quantity gt 5)"},
		{"Orders", Any("Details", Eq(Ref("product.productName"), Lit("Chai"))), "Details/any(x1:x1/Product/ProductName eq 'Chai')"},
		{"Categories", All("products", Any("Category.Products", nil)), "Products/all(x1:x1/Category/Products/any())"},
		{"People", Eq(Ref("Nickname"), Lit("Bob")), "Nickname eq 'Bob'"},
		{"People", Eq(Ref("name"), Lit("Bob")), "Name eq 'Bob'"},
	}
	for _, tt := range tests {
		ctx := newMetadataContext(t, tt.collection, Settings{})
		got, err := Format(tt.node, ctx)
		if err != nil {
			t.Errorf("%s: Format failed: %v", tt.collection, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("%s: expected %q, got %q", tt.collection, tt.expected, got)
		}
	}
}

func TestFormat_UnresolvablePath(t *testing.T) {
	ctx := newMetadataContext(t, "Products", Settings{})
	_, err := Format(Eq(Ref("Supplier.Name"), Lit("X")), ctx)
	if !errors.Is(err, ErrUnresolvablePath) {
		t.Fatalf("Expected ErrUnresolvablePath, got %v", err)
	}
	if !errors.Is(err, metadata.ErrUnresolvable) {
		t.Errorf("Expected the metadata error to be wrapped, got %v", err)
	}
	var formatErr *FormatError
	if !errors.As(err, &formatErr) || formatErr.Segment != "Supplier" {
		t.Errorf("Expected segment Supplier, got %+v", formatErr)
	}

	_, err = Format(Eq(Ref("ShipAddress.Street"), Lit("X")), newMetadataContext(t, "Orders", Settings{}))
	if !errors.Is(err, ErrUnresolvablePath) {
		t.Errorf("Expected an unknown complex member to fail, got %v", err)
	}

	lenient := newMetadataContext(t, "Products", Settings{IgnoreUnmappedProperties: true})
	got, err := Format(Eq(Ref("Supplier.Name"), Lit("X")), lenient)
	if err != nil || got != "Supplier/Name eq 'X'" {
		t.Errorf("Expected unmapped path kept verbatim, got %q (%v)", got, err)
	}
}

func TestEscapeDataString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Chai", "Chai"},
		{"a-b_c.d~e", "a-b_c.d~e"},
		{"'O''Neil'", "%27O%27%27Neil%27"},
		{"a b&c=d", "a%20b%26c%3Dd"},
		{"(1)/$x,y", "%281%29%2F%24x%2Cy"},
		{"é", "%C3%A9"},
	}
	for _, tt := range tests {
		if got := EscapeDataString(tt.input); got != tt.expected {
			t.Errorf("EscapeDataString(%q): expected %q, got %q", tt.input, tt.expected, got)
		}
	}
}
