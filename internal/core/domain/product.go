package domain

type Product struct {
	ID       int64
	Name     string
	Price    int64
	Category string
	Sizes    SizeRecord
}

// A StockChangeReason names the operation that changed a size record.
type StockChangeReason string

const (
	ReasonCreate      StockChangeReason = "create"
	ReasonReplace     StockChangeReason = "replace"
	ReasonSetQuantity StockChangeReason = "set_quantity"
	ReasonMove        StockChangeReason = "move"
	ReasonOrder       StockChangeReason = "order"
	ReasonDelete      StockChangeReason = "delete"
)

// A StockChange is the committed size record of a product after a mutation.
//
// Sizes is nil for [ReasonDelete].
type StockChange struct {
	ProductID int64
	Reason    StockChangeReason
	Sizes     SizeRecord
}
