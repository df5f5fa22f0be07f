// Package assert holds invariant checks that panic, they guard programmer
// errors such as a missing dependency, never bad input.
package assert

import (
	"fmt"
	"reflect"
)

// NotNil also catches typed nils hidden in an interface.
func NotNil(value any) {
	if value == nil {
		panic("expected value to be not nil")
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Chan, reflect.Slice, reflect.Interface:
		if v.IsNil() {
			panic(fmt.Sprintf("expected %s to be not nil", v.Type()))
		}
	}
}

func NonNegative(name string, n int64) {
	if n < 0 {
		panic(fmt.Sprintf("expected %s to be non-negative, got %d", name, n))
	}
}
