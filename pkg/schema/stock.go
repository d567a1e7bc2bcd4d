package schema

import "github.com/hamba/avro/v2"

const StockChangedSchemaTextV1 = `{
	"type": "record",
	"namespace": "stock",
	"name": "stock_changed",
	"fields": [
		{"name": "event_id", "type": "string"},
		{"name": "product_id", "type": "long"},
		{"name": "reason", "type": "string"},
		{"name": "sizes", "type": {
			"type": "array",
			"items": {
				"type": "record",
				"name": "size_stock",
				"fields": [
					{"name": "size", "type": "string"},
					{"name": "online", "type": "int"},
					{"name": "club", "type": "int"}
				]
			}
		}}
	]
}`

type (
	StockChangedV1 struct {
		EventID   string        `avro:"event_id"`
		ProductID int64         `avro:"product_id"`
		Reason    string        `avro:"reason"`
		Sizes     []SizeStockV1 `avro:"sizes"`
	}

	SizeStockV1 struct {
		Size   string `avro:"size"`
		Online int    `avro:"online"`
		Club   int    `avro:"club"`
	}
)

func StockChangedV1Avro() avro.Schema {
	return avro.MustParse(StockChangedSchemaTextV1)
}
