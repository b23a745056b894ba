// Package assert holds constructor-time invariant checks. A failed check is a
// wiring bug, so it panics instead of returning an error.
package assert

import (
	"fmt"
	"reflect"
)

// NotNil panics on a nil value, including typed nil pointers, maps, slices,
// channels and funcs stored in an interface.
func NotNil(value any) {
	if value == nil {
		panic("expected value to be not nil")
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		if v.IsNil() {
			panic(fmt.Sprintf("expected %s to be not nil", v.Type()))
		}
	}
}

func NotEmptyStr(str string) {
	if str == "" {
		panic("expected string to be non-empty")
	}
}
