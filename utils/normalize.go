package utils

import (
	"reflect"
	"strings"
)

// NormalizeDTO trims string and non-nil *string fields on a pointer-to-struct DTO.
// Nil pointers stay nil so "not sent" remains distinguishable from "sent empty".
func NormalizeDTO(dto any) {
	v := reflect.ValueOf(dto)
	if v.Kind() != reflect.Ptr {
		return
	}
	s := v.Elem()
	if s.Kind() != reflect.Struct {
		return
	}
	for i := 0; i < s.NumField(); i++ {
		f := s.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(strings.TrimSpace(f.String()))
		case reflect.Ptr:
			if f.IsNil() || f.Elem().Kind() != reflect.String {
				continue
			}
			f.Elem().SetString(strings.TrimSpace(f.Elem().String()))
		}
	}
}
