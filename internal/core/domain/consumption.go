package domain

// A Consumption is one order line taking stock of a product size.
type Consumption struct {
	ProductID int64
	Size      string
	Quantity  int
}

// A ConsumptionResult tells where the consumed units were taken from.
//
// Dropped is the part of the request no location could cover.
type ConsumptionResult struct {
	Online  int
	Club    int
	Dropped int
}

// Consume takes quantity units of size, online stock first and the
// overflow from club stock. Stock never goes below zero, an uncovered
// remainder is dropped.
//
// The returned bool is false when the record has no such size,
// in which case nothing is consumed.
func Consume(
	raw RawSizes, size string, quantity int,
) (SizeRecord, ConsumptionResult, bool) {
	r := Normalize(raw)
	stock, ok := r[size]
	if !ok {
		return r, ConsumptionResult{}, false
	}

	remaining := max(0, quantity)
	var res ConsumptionResult

	res.Online = min(remaining, stock.Online)
	stock.Online -= res.Online
	remaining -= res.Online

	res.Club = min(remaining, stock.Club)
	stock.Club -= res.Club
	remaining -= res.Club

	res.Dropped = remaining
	r[size] = stock
	return r, res, true
}
