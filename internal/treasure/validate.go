package treasure

// TypeResult is the outcome of validating a type tag received from generation.
// When Coerced is true, Raw held a value outside the closed set and Type is DefaultType.
type TypeResult struct {
	Type    Type
	Coerced bool
	Raw     string
}

// ValidateType maps a raw tag onto the closed set. Matching is exact.
func ValidateType(raw string) TypeResult {
	t := Type(raw)
	if t.Valid() {
		return TypeResult{Type: t, Raw: raw}
	}
	return TypeResult{Type: DefaultType, Coerced: true, Raw: raw}
}
