package perm

// coalesceFunc combines the set of observed values for one type into a single
// effective value. The boolean result is false when the set is empty.
type coalesceFunc func(s typeSpec, present map[Value]bool) (Value, bool)

// coalesceOverrides maps permission types to non-default coalescing rules.
// Extend by registering an entry, not by adding dispatch branches.
var coalesceOverrides = map[Type]coalesceFunc{
	TypeDataAccess: coalesceDataAccess,
}

// scanLattice returns the first lattice member present in the input set.
func scanLattice(lattice []Value, present map[Value]bool) (Value, bool) {
	for _, v := range lattice {
		if present[v] {
			return v, true
		}
	}

	return "", false
}

// coalesceDataAccess implements the destructive-block rule: one group's block
// poisons the combination unless another group grants fully unrestricted
// access. An intermediate grant cannot override a block.
func coalesceDataAccess(s typeSpec, present map[Value]bool) (Value, bool) {
	if present[ValueBlock] && !present[ValueUnrestricted] {
		return ValueBlock, true
	}

	return scanLattice(s.values, present)
}

func presentSet(t Type, s typeSpec, values []Value) (map[Value]bool, error) {
	present := make(map[Value]bool, len(values))

	for _, v := range values {
		if s.index(v) < 0 {
			return nil, Validate(t, v)
		}

		present[v] = true
	}

	return present, nil
}

// Coalesce combines several observed values into one effective value, most
// permissive across groups. It scans the type's lattice from most to least
// permissive and returns the first member present, subject to any registered
// per-type override. The boolean result is false for an empty input set;
// callers substitute the type's least permissive value.
func Coalesce(t Type, values []Value) (Value, bool, error) {
	s, err := lookup(t)
	if err != nil {
		return "", false, err
	}

	present, err := presentSet(t, s, values)
	if err != nil {
		return "", false, err
	}

	if len(present) == 0 {
		return "", false, nil
	}

	if fn, ok := coalesceOverrides[t]; ok {
		v, found := fn(s, present)
		return v, found, nil
	}

	v, found := scanLattice(s.values, present)

	return v, found, nil
}

// CoalesceMostRestrictive combines values by scanning the reversed lattice,
// least permissive first. It computes the conservative per-group aggregate
// (the worst table visible to one group) before group results are combined
// across groups with Coalesce.
func CoalesceMostRestrictive(t Type, values []Value) (Value, bool, error) {
	s, err := lookup(t)
	if err != nil {
		return "", false, err
	}

	present, err := presentSet(t, s, values)
	if err != nil {
		return "", false, err
	}

	for i := len(s.values) - 1; i >= 0; i-- {
		if present[s.values[i]] {
			return s.values[i], true, nil
		}
	}

	return "", false, nil
}
