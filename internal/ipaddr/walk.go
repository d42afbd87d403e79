package ipaddr

// Walk calls fn for every address from start to end, inclusive, in
// ascending order. It stops early if fn returns false.
func Walk(start, end string, fn func(ip string) bool) error {
	first, err := ToUint32(start)
	if err != nil {
		return err
	}
	last, err := ToUint32(end)
	if err != nil {
		return err
	}
	for v := first; v <= last; v++ {
		if !fn(FromUint32(v)) {
			return nil
		}
		if v == last {
			break
		}
	}
	return nil
}
