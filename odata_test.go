package odata

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

type Status int

const (
	StatusDraft Status = iota
	StatusActive
)

func (Status) EnumMembers() []EnumMember {
	return []EnumMember{{Name: "Draft", Value: 0}, {Name: "Active", Value: 1}}
}

type ProductCode string

type Category struct {
	ID       int       `json:"CategoryID" odata:"key"`
	Name     string    `json:"CategoryName"`
	Products []Product `json:"Products,omitempty"`
}

type Product struct {
	ID         int             `json:"ProductID" odata:"key"`
	Name       string          `json:"ProductName"`
	Price      decimal.Decimal `json:"Price"`
	Code       ProductCode     `json:"Code"`
	Status     Status          `json:"Status" odata:"enum"`
	CategoryID int             `json:"CategoryID"`
	Category   *Category       `json:"Category,omitempty" gorm:"foreignKey:CategoryID"`
}

func newTestClient(t *testing.T, settings Settings) *Client {
	t.Helper()
	client := NewClient(settings)
	if err := client.RegisterEntities(&Product{}, &Category{}); err != nil {
		t.Fatalf("Failed to register entities: %v", err)
	}
	return client
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(Settings{})
	settings := client.Settings()
	if settings.Namespace != DefaultNamespace {
		t.Errorf("Expected namespace %q, got %q", DefaultNamespace, settings.Namespace)
	}
	if settings.Version != V4 {
		t.Errorf("Expected version V4, got %s", settings.Version)
	}
	if settings.Resolver == nil {
		t.Error("Expected a default resolver")
	}
	if client.Metadata() != nil {
		t.Error("Expected no metadata before a schema is attached")
	}
	if client.Logger() == nil {
		t.Error("Expected a default logger")
	}
}

func TestClient_FormatWithoutSchema(t *testing.T) {
	client := NewClient(Settings{})
	got, err := client.Format(context.Background(), "Products", Eq(Ref("Name"), Lit("Chai")))
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if got != "Name eq 'Chai'" {
		t.Errorf("Expected %q, got %q", "Name eq 'Chai'", got)
	}
}

func TestClient_Format(t *testing.T) {
	client := newTestClient(t, Settings{})

	tests := []struct {
		name       string
		collection string
		node       Node
		expected   string
	}{
		{
			name:       "navigation and decimal",
			collection: "Products",
			node: And(
				Eq(Ref("category.categoryName"), Lit("Beverages")),
				Gt(Ref("price"), Lit(10)),
			),
			expected: "Category/CategoryName eq 'Beverages' and Price gt 10",
		},
		{
			name:       "enum",
			collection: "Products",
			node:       Eq(Ref("status"), Lit(StatusActive)),
			expected:   "Status eq ODataService.Status'Active'",
		},
		{
			name:       "function",
			collection: "products",
			node:       StartsWith(ToLower(Ref("productName")), Lit("ch")),
			expected:   "startswith(tolower(ProductName),'ch')",
		},
		{
			name:       "any",
			collection: "Categories",
			node:       Any("products", Gt(Ref("price"), Lit(1))),
			expected:   "Products/any(x1:x1/Price gt 1)",
		},
		{
			name:       "in",
			collection: "Products",
			node:       In(Ref("productID"), []int{1, 2, 3}),
			expected:   "ProductID in (1,2,3)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := client.Format(context.Background(), tt.collection, tt.node)
			if err != nil {
				t.Fatalf("Format failed: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestClient_FormatErrors(t *testing.T) {
	client := newTestClient(t, Settings{})

	_, err := client.Format(context.Background(), "Products", Gt(Ref("weight"), Lit(1)))
	if !errors.Is(err, ErrUnresolvablePath) {
		t.Fatalf("Expected ErrUnresolvablePath, got %v", err)
	}
	var formatErr *FormatError
	if !errors.As(err, &formatErr) || formatErr.Segment != "weight" {
		t.Errorf("Expected the segment weight, got %+v", formatErr)
	}

	_, err = client.Format(context.Background(), "Suppliers", Gt(Ref("weight"), Lit(1)))
	if !errors.Is(err, ErrUnresolvableObject) {
		t.Errorf("Expected ErrUnresolvableObject, got %v", err)
	}

	_, err = client.FormatQueryOption(context.Background(), Gt(Ref("a"), Lit(1)))
	if !errors.Is(err, ErrInvalidQueryOption) {
		t.Errorf("Expected ErrInvalidQueryOption, got %v", err)
	}
}

func TestClient_Settings(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		node     Node
		expected string
	}{
		{"prefix free enum", Settings{EnumPrefixFree: true}, Eq(Ref("status"), Lit(StatusActive)), "Status eq 'Active'"},
		{"pre-V4 contains", Settings{Version: V3}, Contains(Ref("productName"), Lit("ch")), "substringof('ch',ProductName)"},
		{"unmapped property", Settings{IgnoreUnmappedProperties: true}, Gt(Ref("weight"), Lit(1)), "weight gt 1"},
		{"strict resolver", Settings{Resolver: StrictMatch}, Eq(Ref("ProductName"), Lit("Chai")), "ProductName eq 'Chai'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.settings)
			got, err := client.Format(context.Background(), "Products", tt.node)
			if err != nil {
				t.Fatalf("Format failed: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}

	strict := newTestClient(t, Settings{Resolver: StrictMatch})
	if _, err := strict.Format(context.Background(), "Products", Eq(Ref("productname"), Lit("Chai"))); !errors.Is(err, ErrUnresolvablePath) {
		t.Errorf("Expected the strict resolver to reject a case mismatch, got %v", err)
	}
}

func TestClient_FormatQueryOption(t *testing.T) {
	client := newTestClient(t, Settings{})
	got, err := client.FormatQueryOption(context.Background(), And(Eq(Ref("foo"), Lit(1)), Eq(Ref("bar"), Lit("x"))))
	if err != nil {
		t.Fatalf("FormatQueryOption failed: %v", err)
	}
	if got != "foo=1&bar='x'" {
		t.Errorf("Expected %q, got %q", "foo=1&bar='x'", got)
	}
}

func TestClient_RegisterConverter(t *testing.T) {
	codeType := reflect.TypeOf(ProductCode(""))
	node := Eq(Ref("code"), Convert(Lit("abc"), codeType))

	client := newTestClient(t, Settings{})
	client.RegisterConverter(codeType, func(value any) (any, error) {
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected %T", value)
		}
		return ProductCode(strings.ToUpper(s)), nil
	})

	got, err := client.Format(context.Background(), "Products", node)
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if got != "Code eq 'ABC'" {
		t.Errorf("Expected %q, got %q", "Code eq 'ABC'", got)
	}

	other := newTestClient(t, Settings{})
	got, err = other.Format(context.Background(), "Products", node)
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if got != "Code eq 'abc'" {
		t.Errorf("Expected converters to belong to one client, got %q", got)
	}

	if _, err := client.Convert(42, codeType); !errors.Is(err, ErrConversionFailure) {
		t.Errorf("Expected ErrConversionFailure, got %v", err)
	}

	client.RegisterConverter(codeType, nil)
	got, _ = client.Format(context.Background(), "Products", node)
	if got != "Code eq 'abc'" {
		t.Errorf("Expected the converter to be removed, got %q", got)
	}
}

func TestClient_RegisterEnum(t *testing.T) {
	type Permission int
	client := NewClient(Settings{Namespace: "Auth"})
	err := client.RegisterEnum(Permission(0), WithFlags(), WithMembers(
		EnumMember{Name: "Read", Value: 1},
		EnumMember{Name: "Write", Value: 2},
	))
	if err != nil {
		t.Fatalf("RegisterEnum failed: %v", err)
	}
	got, err := client.Format(context.Background(), "", HasFlag(Ref("Access"), Permission(3)))
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if got != "Access has Auth.Permission'Read,Write'" {
		t.Errorf("Expected %q, got %q", "Access has Auth.Permission'Read,Write'", got)
	}

	if err := client.RegisterEnum(struct{}{}); err == nil {
		t.Error("Expected a struct enum to be rejected")
	}
}

func TestField(t *testing.T) {
	client := newTestClient(t, Settings{})

	ref, err := Field[Product](client, "Category.Name")
	if err != nil {
		t.Fatalf("Field failed: %v", err)
	}
	if ref.Path != "Category/CategoryName" {
		t.Errorf("Expected Category/CategoryName, got %q", ref.Path)
	}

	got, err := client.Format(context.Background(), "Products", Eq(ref, Lit("Beverages")))
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if got != "Category/CategoryName eq 'Beverages'" {
		t.Errorf("Expected %q, got %q", "Category/CategoryName eq 'Beverages'", got)
	}

	if _, err := Field[Product](client, "Weight"); err == nil {
		t.Error("Expected an unknown field to fail")
	}
}

func TestClient_Geospatial(t *testing.T) {
	client := NewClient(Settings{})
	node := Lt(Distance(Ref("Location"), Lit(GeographyPoint{Longitude: 1, Latitude: 2})), Lit(10))

	if _, err := client.Format(context.Background(), "", node); !errors.Is(err, ErrUnsupportedFunction) {
		t.Fatalf("Expected geo functions to be disabled by default, got %v", err)
	}

	client.EnableGeospatial()
	if !client.IsGeospatialEnabled() {
		t.Fatal("Expected geospatial functions to be enabled")
	}
	got, err := client.Format(context.Background(), "", node)
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	expected := "geo.distance(Location,geography'SRID=4326;POINT(1 2)') lt 10"
	if got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}

	client.DisableGeospatial()
	if client.IsGeospatialEnabled() {
		t.Error("Expected geospatial functions to be disabled")
	}
}

func TestClient_Query(t *testing.T) {
	client := newTestClient(t, Settings{})

	clauses, err := client.Query("products").
		Key(1).
		Filter(Eq(Ref("productName"), Lit("Chai"))).
		Select("productName", "price").
		OrderByDescending("price").
		Expand("category").
		Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"resource", clauses.Resource, "Products"},
		{"key", clauses.Key, "(1)"},
		{"filter", clauses.Filter, "ProductName eq 'Chai'"},
		{"select", clauses.Select, "ProductName,Price"},
		{"orderby", clauses.OrderBy, "Price desc"},
		{"expand", clauses.Expand, "Category"},
	}
	for _, tt := range tests {
		if tt.got != tt.expected {
			t.Errorf("%s: expected %q, got %q", tt.name, tt.expected, tt.got)
		}
	}

	base := client.Query("Products").Filter(Gt(Ref("price"), Lit(1)))
	branch := base.Clone().Filter(Eq(Ref("status"), Lit(StatusActive)))
	baseClauses, err := base.Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	branchClauses, err := branch.Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if baseClauses.Filter != "Price gt 1" {
		t.Errorf("Expected the base query to be unchanged, got %q", baseClauses.Filter)
	}
	if branchClauses.Filter != "Price gt 1 and Status eq ODataService.Status'Active'" {
		t.Errorf("Unexpected branch filter %q", branchClauses.Filter)
	}
}

func TestClient_SetObservability(t *testing.T) {
	client := newTestClient(t, Settings{})
	err := client.SetObservability(ObservabilityConfig{
		TracerProvider: tracenoop.NewTracerProvider(),
		MeterProvider:  metricnoop.NewMeterProvider(),
		ServiceName:    "odata-test",
		ServiceVersion: "1.0.0",
	})
	if err != nil {
		t.Fatalf("SetObservability failed: %v", err)
	}

	got, err := client.Format(context.Background(), "Products", Eq(Ref("productName"), Lit("Chai")))
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if got != "ProductName eq 'Chai'" {
		t.Errorf("Expected %q, got %q", "ProductName eq 'Chai'", got)
	}

	if _, err := client.Format(context.Background(), "Products", Eq(Ref("weight"), Lit(1))); !errors.Is(err, ErrUnresolvablePath) {
		t.Errorf("Expected errors to pass through instrumentation, got %v", err)
	}

	clauses, err := client.Query("Products").Select("price").Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if clauses.Select != "Price" {
		t.Errorf("Expected Price, got %q", clauses.Select)
	}
}

func TestClient_SetObservabilityDuringFormat(t *testing.T) {
	client := newTestClient(t, Settings{})
	node := Eq(Ref("category.categoryName"), Lit("Beverages"))

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				got, err := client.Format(context.Background(), "Products", node)
				if err != nil {
					errs[i] = err
					return
				}
				if got != "Category/CategoryName eq 'Beverages'" {
					errs[i] = fmt.Errorf("unexpected result %q", got)
					return
				}
			}
		}(i)
	}
	for i := 0; i < 20; i++ {
		err := client.SetObservability(ObservabilityConfig{
			TracerProvider: tracenoop.NewTracerProvider(),
			MeterProvider:  metricnoop.NewMeterProvider(),
		})
		if err != nil {
			t.Fatalf("SetObservability failed: %v", err)
		}
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("Goroutine %d failed: %v", i, err)
		}
	}
}

func TestClient_ConcurrentFormat(t *testing.T) {
	client := newTestClient(t, Settings{})
	node := And(
		Any("products", Gt(Ref("price"), Lit(1))),
		All("products", Any("category.products", Eq(Ref("status"), Lit(StatusDraft)))),
	)
	expected := "Products/any(x1:x1/Price gt 1) and Products/all(x2:x2/Category/Products/any(x3:x3/Status eq ODataService.Status'Draft'))"

	var wg sync.WaitGroup
	results := make([]string, 16)
	errs := make([]error, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = client.Format(context.Background(), "Categories", node)
		}(i)
	}
	wg.Wait()

	for i := range results {
		if errs[i] != nil {
			t.Errorf("Call %d failed: %v", i, errs[i])
			continue
		}
		if results[i] != expected {
			t.Errorf("Call %d: expected %q, got %q", i, expected, results[i])
		}
	}
}
