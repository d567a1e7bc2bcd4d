package domain

import "fmt"

// SetQuantity overwrites the stock of size at l.
//
// The whole record is upgraded to the canonical shape. Negative quantities
// are stored as 0. A missing size is created with nothing at the other
// location.
func SetQuantity(
	raw RawSizes, size string, quantity int, l Location,
) (SizeRecord, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLocation, l)
	}

	r := Normalize(raw)
	stock := r[size]
	stock.set(l, max(0, quantity))
	r[size] = stock
	return r, nil
}

// A Transfer moves Amount units of Size between two locations.
type Transfer struct {
	Size   string
	Amount int
	From   Location
	To     Location
}

// Move applies t to the record.
//
// Nothing is moved unless the source location holds at least t.Amount.
// Moving within one location leaves the record unchanged.
func Move(raw RawSizes, t Transfer) (SizeRecord, error) {
	if !t.From.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLocation, t.From)
	}
	if !t.To.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLocation, t.To)
	}
	if t.Amount <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidAmount, t.Amount)
	}

	r := Normalize(raw)
	stock, ok := r[t.Size]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSizeNotFound, t.Size)
	}

	available := stock.At(t.From)
	if available < t.Amount {
		return nil, &InsufficientStockError{
			Size:      t.Size,
			Location:  t.From,
			Available: available,
			Requested: t.Amount,
		}
	}

	stock.set(t.From, available-t.Amount)
	stock.set(t.To, stock.At(t.To)+t.Amount)
	r[t.Size] = stock
	return r, nil
}
