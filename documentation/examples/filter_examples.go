//go:build example

// Package main demonstrates formatting filters and queries with go-odata-client.
//
// This example shows how to:
// 1. Register entity types so property names resolve to their EDM names
// 2. Build $filter expressions including lambdas and enums
// 3. Build a complete request with key, $select, $orderby and custom options
// 4. Format expressions without any schema
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	odata "github.com/nlstn/go-odata-client"
)

type Status int

const (
	StatusDraft Status = iota
	StatusActive
)

func (Status) EnumMembers() []odata.EnumMember {
	return []odata.EnumMember{
		{Name: "Draft", Value: int64(StatusDraft)},
		{Name: "Active", Value: int64(StatusActive)},
	}
}

type Category struct {
	ID       int       `json:"CategoryID" odata:"key"`
	Name     string    `json:"CategoryName"`
	Products []Product `json:"Products"`
}

type Product struct {
	ID         int             `json:"ProductID" odata:"key"`
	Name       string          `json:"ProductName"`
	Price      decimal.Decimal `json:"Price"`
	Status     Status          `json:"Status" odata:"enum"`
	CategoryID int             `json:"CategoryID"`
	Category   *Category       `json:"Category"`
}

func main() {
	ctx := context.Background()

	client := odata.NewClient(odata.Settings{Namespace: "Shop"})
	if err := client.RegisterEntities(&Product{}, &Category{}); err != nil {
		log.Fatal(err)
	}

	// Example 1: property names resolve case-insensitively
	// ======================================================
	filter, err := client.Format(ctx, "Products", odata.And(
		odata.StartsWith(odata.ToLower(odata.Ref("name")), odata.Lit("ch")),
		odata.Gt(odata.Ref("price"), odata.Lit(decimal.RequireFromString("10.5"))),
	))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(filter)
	// startswith(tolower(ProductName),'ch') and Price gt 10.5

	// Example 2: lambdas and enums
	// ============================
	filter, err = client.Format(ctx, "Categories", odata.Any("products",
		odata.Eq(odata.Ref("status"), odata.Lit(StatusActive))))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(filter)
	// Products/any(x1:x1/Status eq Shop.Status'Active')

	// Example 3: a complete request
	// =============================
	clauses, err := client.Query("products").
		Filter(odata.In(odata.Ref("categoryID"), []int{1, 2})).
		Select("name", "price").
		OrderByDescending("price").
		Expand("category").
		CustomOptions(map[string]any{"tenant": "north"}).
		Build(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(clauses.Resource, clauses.Options())

	// Example 4: no schema
	// ====================
	plain := odata.NewClient(odata.Settings{})
	filter, err = plain.Format(ctx, "", odata.Ne(odata.Ref("Name"), odata.Null()))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(filter)
	// Name ne null
}
