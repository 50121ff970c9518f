package cli

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

// jsonName returns the json tag name of f, or "" when the field is not serialised.
func jsonName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "-" || !f.IsExported() {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return f.Name
	}
	return name
}

// findField returns the field of the struct behind ptr whose json name
// matches name case-insensitively.
func findField(ptr any, name string) (reflect.Value, string, error) {
	v := reflect.ValueOf(ptr)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, "", fmt.Errorf("%w: %T is not a struct pointer", domain.ErrInvalidInput, ptr)
	}
	v = v.Elem()
	t := v.Type()
	for i := range t.NumField() {
		n := jsonName(t.Field(i))
		if n != "" && strings.EqualFold(n, name) {
			return v.Field(i), n, nil
		}
	}
	return reflect.Value{}, "", fmt.Errorf("%w: unknown field %q", domain.ErrInvalidInput, name)
}

// setField parses raw into the named field. Strings, bools and ints are supported.
func setField(ptr any, name, raw string) error {
	f, canonical, err := findField(ptr, name)
	if err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	switch f.Kind() {
	case reflect.String:
		f.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%w: %s expects true or false, got %q", domain.ErrInvalidInput, canonical, raw)
		}
		f.SetBool(b)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s expects a number, got %q", domain.ErrInvalidInput, canonical, raw)
		}
		f.SetInt(n)
	default:
		return fmt.Errorf("%w: %s cannot be set from the command line", domain.ErrInvalidInput, canonical)
	}
	return nil
}

// getField returns the named field formatted for display.
func getField(ptr any, name string) (string, error) {
	f, _, err := findField(ptr, name)
	if err != nil {
		return "", err
	}
	return fmt.Sprint(f.Interface()), nil
}

// fieldPair is a json field name and its formatted value.
type fieldPair struct {
	Name  string
	Value string
}

// listFields returns every serialised field of the struct behind ptr in declaration order.
func listFields(ptr any) []fieldPair {
	v := reflect.Indirect(reflect.ValueOf(ptr))
	if v.Kind() != reflect.Struct {
		return nil
	}
	t := v.Type()
	out := make([]fieldPair, 0, t.NumField())
	for i := range t.NumField() {
		if n := jsonName(t.Field(i)); n != "" {
			out = append(out, fieldPair{Name: n, Value: fmt.Sprint(v.Field(i).Interface())})
		}
	}
	return out
}

// secretFields names the sensitive field of each directory config.
var secretFields = map[domain.DirectoryType]string{
	domain.DirectoryLdap:     "password",
	domain.DirectoryEntraID:  "key",
	domain.DirectoryGSuite:   "privateKey",
	domain.DirectoryOkta:     "token",
	domain.DirectoryOneLogin: "clientSecret",
}

// fieldAliases maps short setting names to config field names.
var fieldAliases = map[domain.DirectoryType]map[string]string{
	domain.DirectoryGSuite:   {"key": "privateKey"},
	domain.DirectoryOneLogin: {"secret": "clientSecret"},
}

// resolveField applies aliases and reports whether name is the secret field of t.
func resolveField(t domain.DirectoryType, name string) (string, bool) {
	if alias, ok := fieldAliases[t][strings.ToLower(name)]; ok {
		name = alias
	}
	return name, strings.EqualFold(name, secretFields[t])
}
