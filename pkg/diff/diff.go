// Package diff compares before/after snapshots of records. Services use it to
// decide whether an update changes anything and which references were added
// or removed, instead of re-deriving change sets at every call site.
package diff

import (
	"reflect"
)

// Modified returns the names of the fields set in patch whose value differs
// from the same-named field of original.
//
// patch must be a struct (or pointer to struct) whose fields are pointers; a
// nil field means "not part of the patch" and is skipped. Only fields present
// in the patch are compared, so the patch itself selects which fields matter.
// A patch field named like a field of original is compared with that field,
// dereferencing pointer fields on the original side. Empty and nil slices are
// considered equal. Patch fields with no counterpart in original are reported
// as modified when set.
func Modified(original, patch any) []string {
	ov := indirect(reflect.ValueOf(original))
	pv := indirect(reflect.ValueOf(patch))
	if pv.Kind() != reflect.Struct {
		return nil
	}

	var modified []string
	pt := pv.Type()
	for i := range pt.NumField() {
		field := pt.Field(i)
		if !field.IsExported() {
			continue
		}
		pf := pv.Field(i)
		if pf.Kind() != reflect.Pointer || pf.IsNil() {
			continue
		}

		var of reflect.Value
		if ov.Kind() == reflect.Struct {
			of = ov.FieldByName(field.Name)
		}
		if !of.IsValid() || !equal(of, pf.Elem()) {
			modified = append(modified, field.Name)
		}
	}

	return modified
}

// equal compares an original field with a dereferenced patch value.
func equal(original, patched reflect.Value) bool {
	if original.Kind() == reflect.Pointer && patched.Kind() != reflect.Pointer {
		if original.IsNil() {
			return false
		}
		original = original.Elem()
	}
	if original.Type() != patched.Type() {
		return false
	}
	if original.Kind() == reflect.Slice && original.Len() == 0 && patched.Len() == 0 {
		return true
	}

	return reflect.DeepEqual(original.Interface(), patched.Interface())
}

func indirect(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}

	return v
}

// Sets returns the elements of after missing from before (added) and the
// elements of before missing from after (removed). Both results keep the
// order of their source slice and contain no duplicates.
func Sets[T comparable](before, after []T) (added, removed []T) {
	inBefore := make(map[T]struct{}, len(before))
	for _, v := range before {
		inBefore[v] = struct{}{}
	}
	inAfter := make(map[T]struct{}, len(after))
	for _, v := range after {
		inAfter[v] = struct{}{}
	}

	for _, v := range Unique(after) {
		if _, ok := inBefore[v]; !ok {
			added = append(added, v)
		}
	}
	for _, v := range Unique(before) {
		if _, ok := inAfter[v]; !ok {
			removed = append(removed, v)
		}
	}

	return added, removed
}

// Unique returns in without duplicates, keeping the first occurrence of every
// element. The result is never nil.
func Unique[T comparable](in []T) []T {
	out := make([]T, 0, len(in))
	seen := make(map[T]struct{}, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	return out
}

// Without returns in with every occurrence of drop removed. The result is
// never nil.
func Without[T comparable](in []T, drop T) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		if v != drop {
			out = append(out, v)
		}
	}

	return out
}
