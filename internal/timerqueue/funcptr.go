package timerqueue

import "reflect"

// funcPointer extracts the underlying code pointer of a func value so two
// Func values referring to the same callback compare equal, matching C's
// function-pointer comparison in timeq_del_matching. A nil Func yields 0.
func funcPointer(f Func) uintptr {
	if f == nil {
		return 0
	}
	return reflect.ValueOf(f).Pointer()
}
