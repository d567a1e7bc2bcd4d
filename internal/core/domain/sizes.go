package domain

import (
	"encoding/json"
	"math"
	"slices"
	"strconv"
	"strings"
)

// A RawSizes is a size record as it is stored, in any of its historical shapes.
//
// Each value is one of:
//   - a bare quantity (or null): online only stock;
//   - {"quantity": N, "location": "online"|"club"}: all units at one location;
//   - {"online": N, "club": M}: the canonical shape, missing keys mean 0.
type RawSizes map[string]any

// A LocationStock is the quantity of one size at every location.
type LocationStock struct {
	Online int `json:"online"`
	Club   int `json:"club"`
}

func (s LocationStock) Total() int {
	return s.Online + s.Club
}

// At returns the quantity at l. Unknown locations hold nothing.
func (s LocationStock) At(l Location) int {
	switch l {
	case LocationOnline:
		return s.Online
	case LocationClub:
		return s.Club
	}
	return 0
}

func (s *LocationStock) set(l Location, quantity int) {
	switch l {
	case LocationOnline:
		s.Online = quantity
	case LocationClub:
		s.Club = quantity
	}
}

// A SizeRecord maps a size label to its canonical stock.
type SizeRecord map[string]LocationStock

// Labels returns size labels in lexical order.
func (r SizeRecord) Labels() []string {
	labels := make([]string, 0, len(r))
	for size := range r {
		labels = append(labels, size)
	}
	slices.Sort(labels)
	return labels
}

func (r SizeRecord) Clone() SizeRecord {
	c := make(SizeRecord, len(r))
	for size, stock := range r {
		c[size] = stock
	}
	return c
}

// Raw returns r in the canonical stored shape.
func (r SizeRecord) Raw() RawSizes {
	raw := make(RawSizes, len(r))
	for size, stock := range r {
		raw[size] = map[string]any{
			"online": stock.Online,
			"club":   stock.Club,
		}
	}
	return raw
}

// An entryShape is a generation of the stored size entry format.
type entryShape int

const (
	shapeScalar entryShape = iota
	shapeLocated
	shapeCanonical
)

const (
	keyOnline   = "online"
	keyClub     = "club"
	keyQuantity = "quantity"
	keyLocation = "location"
)

// classifyEntry resolves the shape of one stored entry.
//
// Objects carrying an "online" or "club" key are canonical even when they
// also carry "quantity". Objects with none of the known keys are read as
// canonical with both locations empty.
func classifyEntry(v any) (entryShape, map[string]any) {
	obj, ok := asObject(v)
	if !ok {
		return shapeScalar, nil
	}
	_, hasOnline := obj[keyOnline]
	_, hasClub := obj[keyClub]
	if hasOnline || hasClub {
		return shapeCanonical, obj
	}
	if _, ok := obj[keyQuantity]; ok {
		return shapeLocated, obj
	}
	return shapeCanonical, obj
}

func asObject(v any) (map[string]any, bool) {
	switch obj := v.(type) {
	case map[string]any:
		return obj, true
	case RawSizes:
		return obj, true
	case LocationStock:
		return map[string]any{keyOnline: obj.Online, keyClub: obj.Club}, true
	case *LocationStock:
		if obj == nil {
			return nil, false
		}
		return map[string]any{keyOnline: obj.Online, keyClub: obj.Club}, true
	}
	return nil, false
}

// normalizeEntry converts one stored entry into canonical stock.
func normalizeEntry(v any) LocationStock {
	shape, obj := classifyEntry(v)
	switch shape {
	case shapeLocated:
		var s LocationStock
		location := LocationOnline
		if l, ok := obj[keyLocation]; ok && l != nil {
			name, _ := l.(string)
			location = Location(name)
		}
		s.set(location, coerceQuantity(obj[keyQuantity]))
		return s
	case shapeCanonical:
		return LocationStock{
			Online: coerceQuantity(obj[keyOnline]),
			Club:   coerceQuantity(obj[keyClub]),
		}
	default:
		return LocationStock{Online: coerceQuantity(v)}
	}
}

// Normalize converts a stored record of any shape into the canonical one.
//
// It never fails: malformed quantities read as 0. The input is not modified.
func Normalize(raw RawSizes) SizeRecord {
	r := make(SizeRecord, len(raw))
	for size, v := range raw {
		r[size] = normalizeEntry(v)
	}
	return r
}

// coerceQuantity reads a stored quantity as a non-negative int.
// Anything that is not a finite number, or an integer string, is 0.
func coerceQuantity(v any) int {
	var n int64
	switch q := v.(type) {
	case nil, bool:
		return 0
	case int:
		n = int64(q)
	case int8:
		n = int64(q)
	case int16:
		n = int64(q)
	case int32:
		n = int64(q)
	case int64:
		n = q
	case uint:
		n = clampUint(uint64(q))
	case uint8:
		n = int64(q)
	case uint16:
		n = int64(q)
	case uint32:
		n = int64(q)
	case uint64:
		n = clampUint(q)
	case float32:
		return floatQuantity(float64(q))
	case float64:
		return floatQuantity(q)
	case json.Number:
		if i, err := q.Int64(); err == nil {
			n = i
			break
		}
		f, err := q.Float64()
		if err != nil {
			return 0
		}
		return floatQuantity(f)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(q), 10, 64)
		if err != nil {
			return 0
		}
		n = i
	default:
		return 0
	}
	return clampInt(n)
}

func floatQuantity(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 {
		return 0
	}
	return clampInt(int64(f))
}

func clampUint(u uint64) int64 {
	if u > math.MaxInt64 {
		return 0
	}
	return int64(u)
}

func clampInt(n int64) int {
	if n < 0 || n > math.MaxInt {
		return 0
	}
	return int(n)
}
