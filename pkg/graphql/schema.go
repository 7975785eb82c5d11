// Package graphql exposes the storefront's read-only lookups (shipping
// quote and stock availability) as a GraphQL query root at /graphql.
package graphql

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/graphql-go/graphql"

	"github.com/shashiranjanraj/eshop/app/services/inventory"
	"github.com/shashiranjanraj/eshop/app/services/shipping"
	"github.com/shashiranjanraj/eshop/pkg/logger"
)

var quoteType = graphql.NewObject(graphql.ObjectConfig{
	Name: "ShippingQuote",
	Fields: graphql.Fields{
		"weightKg": &graphql.Field{Type: graphql.Float},
		"baseCZK":  &graphql.Field{Type: graphql.Int},
		"fuelCZK":  &graphql.Field{Type: graphql.Int},
		"tollCZK":  &graphql.Field{Type: graphql.Float},
		"extraCZK": &graphql.Field{Type: graphql.Int},
		"totalCZK": &graphql.Field{Type: graphql.Int},
	},
})

var availabilityType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Availability",
	Fields: graphql.Fields{
		"available": &graphql.Field{Type: graphql.Boolean},
		"errors":    &graphql.Field{Type: graphql.NewList(graphql.String)},
		"warnings":  &graphql.Field{Type: graphql.NewList(graphql.String)},
	},
})

var cartItemInput = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "CartItemInput",
	Fields: graphql.InputObjectConfigFieldMap{
		"productId": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"size":      &graphql.InputObjectFieldConfig{Type: graphql.String},
		"quantity":  &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Int)},
		"name":      &graphql.InputObjectFieldConfig{Type: graphql.String},
	},
})

var methodEnum = graphql.NewEnum(graphql.EnumConfig{
	Name: "DeliveryMethod",
	Values: graphql.EnumValueConfigMap{
		"PICKUP":        &graphql.EnumValueConfig{Value: string(shipping.Pickup)},
		"HOME_DELIVERY": &graphql.EnumValueConfig{Value: string(shipping.HomeDelivery)},
	},
})

// NewSchema builds the query root over the calculator and the adjuster.
func NewSchema(calc *shipping.Calculator, adjuster *inventory.Adjuster) (graphql.Schema, error) {
	itemsArg := &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(cartItemInput)))}

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"shippingQuote": &graphql.Field{
				Type: quoteType,
				Args: graphql.FieldConfigArgument{
					"method": &graphql.ArgumentConfig{Type: graphql.NewNonNull(methodEnum)},
					"items":  itemsArg,
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					items := inventoryItems(p.Args["items"])
					cart := make([]shipping.CartItem, 0, len(items))
					for _, it := range items {
						cart = append(cart, shipping.CartItem{ProductID: it.ProductID, Quantity: it.Quantity})
					}
					method, _ := p.Args["method"].(string)
					q, weight := calc.Quote(p.Context, cart, shipping.Method(method))
					return map[string]interface{}{
						"weightKg": weight,
						"baseCZK":  q.BaseCZK,
						"fuelCZK":  q.FuelCZK,
						"tollCZK":  q.TollCZK,
						"extraCZK": q.ExtraCZK,
						"totalCZK": q.TotalCZK,
					}, nil
				},
			},
			"availability": &graphql.Field{
				Type: availabilityType,
				Args: graphql.FieldConfigArgument{"items": itemsArg},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					a := adjuster.CheckAvailability(p.Context, inventoryItems(p.Args["items"]))
					return map[string]interface{}{
						"available": a.Available,
						"errors":    a.Errors,
						"warnings":  a.Warnings,
					}, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: query})
}

func inventoryItems(raw interface{}) []inventory.Item {
	list, _ := raw.([]interface{})
	out := make([]inventory.Item, 0, len(list))
	for _, el := range list {
		m, ok := el.(map[string]interface{})
		if !ok {
			continue
		}
		it := inventory.Item{}
		it.ProductID, _ = m["productId"].(string)
		it.Size, _ = m["size"].(string)
		it.Name, _ = m["name"].(string)
		it.Quantity, _ = m["quantity"].(int)
		out = append(out, it)
	}
	return out
}

type request struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// Handler serves POST {"query": ..., "variables": ...}.
func Handler(schema graphql.Schema) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req request
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("invalid GraphQL request: %v", err), http.StatusBadRequest)
			return
		}

		res := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        r.Context(),
		})
		if res.HasErrors() {
			logger.WithCtx(r.Context()).Debug("graphql: query returned errors", "errors", fmt.Sprint(res.Errors))
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(res)
	})
}
