package schema

import "github.com/hamba/avro/v2"

const OrderPlacedSchemaTextV1 = `{
	"type": "record",
	"namespace": "orders",
	"name": "order_placed",
	"fields": [
		{"name": "order_id", "type": "string"},
		{"name": "items", "type": {
			"type": "array",
			"items": {
				"type": "record",
				"name": "order_item",
				"fields": [
					{"name": "product_id", "type": "long"},
					{"name": "size", "type": "string"},
					{"name": "quantity", "type": "int"}
				]
			}
		}}
	]
}`

type (
	OrderPlacedV1 struct {
		OrderID string        `avro:"order_id"`
		Items   []OrderItemV1 `avro:"items"`
	}

	OrderItemV1 struct {
		ProductID int64  `avro:"product_id"`
		Size      string `avro:"size"`
		Quantity  int    `avro:"quantity"`
	}
)

func OrderPlacedV1Avro() avro.Schema {
	return avro.MustParse(OrderPlacedSchemaTextV1)
}
