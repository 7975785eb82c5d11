// Package validate checks request structs against `validate` struct tags.
//
// Rules (comma-separated; list parameters use "|"):
//
//	required               field must not be zero/empty
//	nullable               if empty, skip the remaining rules
//	required_if=f|v        required when sibling json field f equals v
//	email                  valid email address
//	min=N / max=N          string: length bounds | number: value bounds | slice: length bounds
//	gte=N / lte=N          number bounds
//	in=a|b|c               value must be one of the listed items
//	regex=pattern          value must match (pattern must not contain commas)
//	dive                   validate each element of a slice of structs, or a nested struct
//
// Errors are keyed by json path, e.g. "items.0.quantity".
//
//	type Input struct {
//	    Method string `json:"deliveryMethod" validate:"required,in=pickup|home_delivery"`
//	    Items  []Item `json:"items"          validate:"required,min=1,dive"`
//	}
package validate

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"
)

// Struct validates v and returns field path → message; empty means valid.
func Struct(v interface{}) map[string]string {
	errs := make(map[string]string)
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return errs
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return errs
	}
	validateStruct(rv, "", errs)
	return errs
}

// HasErrors reports whether errs is non-empty.
func HasErrors(errs map[string]string) bool { return len(errs) > 0 }

func validateStruct(rv reflect.Value, prefix string, errs map[string]string) {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("validate")
		if tag == "" {
			continue
		}

		value := rv.Field(i)
		name := prefix + jsonFieldName(field)
		rules := strings.Split(tag, ",")

		if hasRule(rules, "nullable") && isEmpty(value) {
			continue
		}

		failed := false
		for _, rule := range rules {
			rule = strings.TrimSpace(rule)
			if rule == "nullable" || rule == "dive" || rule == "" {
				continue
			}
			if msg := applyRule(rule, name, value, rv); msg != "" {
				errs[name] = msg
				failed = true
				break
			}
		}

		if !failed && hasRule(rules, "dive") {
			dive(value, name, errs)
		}
	}
}

func dive(v reflect.Value, name string, errs map[string]string) {
	switch v.Kind() {
	case reflect.Ptr:
		if !v.IsNil() {
			dive(v.Elem(), name, errs)
		}
	case reflect.Struct:
		validateStruct(v, name+".", errs)
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			el := v.Index(i)
			for el.Kind() == reflect.Ptr && !el.IsNil() {
				el = el.Elem()
			}
			if el.Kind() == reflect.Struct {
				validateStruct(el, name+"."+strconv.Itoa(i)+".", errs)
			}
		}
	}
}

func applyRule(rule, field string, v reflect.Value, parent reflect.Value) string {
	key, param, _ := strings.Cut(rule, "=")

	switch key {
	case "required":
		if isEmpty(v) {
			return fmt.Sprintf("The %s field is required.", field)
		}

	case "required_if":
		other, want, _ := strings.Cut(param, "|")
		sib, ok := siblingByJSON(parent, other)
		if ok && fmt.Sprint(sib.Interface()) == want && isEmpty(v) {
			return fmt.Sprintf("The %s field is required when %s is %s.", field, other, want)
		}

	case "email":
		if !emailRE.MatchString(scalar(v)) {
			return fmt.Sprintf("The %s must be a valid email address.", field)
		}

	case "min", "max":
		limit, err := strconv.ParseFloat(param, 64)
		if err != nil {
			return fmt.Sprintf("The %s has an invalid %s rule.", field, key)
		}
		n, unit := measure(v)
		if key == "min" && n < limit {
			return fmt.Sprintf("The %s must be at least %s%s.", field, param, unit)
		}
		if key == "max" && n > limit {
			return fmt.Sprintf("The %s may not be greater than %s%s.", field, param, unit)
		}

	case "gte", "lte":
		limit, err := strconv.ParseFloat(param, 64)
		if err != nil || !isNumericKind(v) {
			return fmt.Sprintf("The %s must be a number.", field)
		}
		f := toFloat(v)
		if key == "gte" && f < limit {
			return fmt.Sprintf("The %s must be greater than or equal to %s.", field, param)
		}
		if key == "lte" && f > limit {
			return fmt.Sprintf("The %s must be less than or equal to %s.", field, param)
		}

	case "in":
		raw := scalar(v)
		for _, a := range strings.Split(param, "|") {
			if raw == strings.TrimSpace(a) {
				return ""
			}
		}
		return fmt.Sprintf("The selected %s is invalid.", field)

	case "regex":
		re, err := compile(param)
		if err != nil {
			return fmt.Sprintf("The %s has an invalid validation pattern.", field)
		}
		if !re.MatchString(scalar(v)) {
			return fmt.Sprintf("The %s format is invalid.", field)
		}

	default:
		return fmt.Sprintf("The %s has an unknown rule %q.", field, key)
	}

	return ""
}

var (
	emailRE = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	reMu    sync.Mutex
	reCache = map[string]*regexp.Regexp{}
)

func compile(pattern string) (*regexp.Regexp, error) {
	reMu.Lock()
	defer reMu.Unlock()
	if re, ok := reCache[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	reCache[pattern] = re
	return re, nil
}

func scalar(v reflect.Value) string {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}
	return fmt.Sprintf("%v", v.Interface())
}

// measure returns the comparable size of v and the unit used in messages.
func measure(v reflect.Value) (float64, string) {
	switch v.Kind() {
	case reflect.String:
		return float64(utf8.RuneCountInString(v.String())), " characters"
	case reflect.Slice, reflect.Array, reflect.Map:
		return float64(v.Len()), " items"
	}
	return toFloat(v), ""
}

func isEmpty(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return strings.TrimSpace(v.String()) == ""
	case reflect.Slice, reflect.Map, reflect.Array:
		return v.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	case reflect.Bool:
		return false
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	}
	return false
}

func isNumericKind(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func toFloat(v reflect.Value) float64 {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint())
	case reflect.Float32, reflect.Float64:
		return v.Float()
	}
	return 0
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}

func siblingByJSON(parent reflect.Value, name string) (reflect.Value, bool) {
	rt := parent.Type()
	for i := 0; i < rt.NumField(); i++ {
		if jsonFieldName(rt.Field(i)) == name {
			return parent.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func hasRule(rules []string, target string) bool {
	for _, r := range rules {
		if strings.TrimSpace(r) == target {
			return true
		}
	}
	return false
}
