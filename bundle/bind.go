package bundle

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// Bind hydrates the struct pointed to by ptr from the bundle. Rules:
//   - ptr must be a non-nil pointer to a struct
//   - only exported fields are considered; json:"-" fields are skipped
//   - the key comes from the `json` tag (first segment) or the field name
//   - pointer fields are optional, non-pointer fields are required
//   - string, bool and numeric kinds are supported; other kinds are ignored
//   - a `bundle` tag supports enum=a|b|c,minLength=N,maxLength=N,minimum=F,maximum=F
//
// On failure the destination is left untouched.
func (b Bundle) Bind(ptr any) error {
	if ptr == nil {
		return errors.New("bundle: nil pointer passed to Bind")
	}
	v := reflect.ValueOf(ptr)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return errors.New("bundle: Bind expects non-nil pointer to struct")
	}
	if v.Elem().Kind() != reflect.Struct {
		return errors.New("bundle: Bind expects pointer to struct")
	}

	plan := getOrBuildPlan(v.Elem().Type())

	// Work in a fresh value to avoid partial mutation on failure.
	fresh := reflect.New(v.Elem().Type()).Elem()

	var missing []string
	for _, f := range plan.fields {
		raw, ok := b[f.key]
		if !ok {
			if !f.isPointer {
				missing = append(missing, f.key)
			}
			continue
		}
		field := fresh.Field(f.index)
		if f.isPointer {
			field.Set(reflect.New(field.Type().Elem()))
			field = field.Elem()
		}
		if err := assign(field, raw, f); err != nil {
			return fmt.Errorf("bundle: field %s: %w", f.key, err)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("bundle: missing required keys: %s", strings.Join(missing, ","))
	}

	v.Elem().Set(fresh)
	return nil
}

type bindPlan struct {
	fields []boundField
}

type boundField struct {
	key       string
	index     int
	kind      reflect.Kind
	isPointer bool
	enum      []string
	c         constraints
}

type constraints struct {
	MinLength *int
	MaxLength *int
	Minimum   *float64
	Maximum   *float64
}

var planCache sync.Map // reflect.Type -> *bindPlan

func getOrBuildPlan(rt reflect.Type) *bindPlan {
	if v, ok := planCache.Load(rt); ok {
		return v.(*bindPlan)
	}
	p := buildPlan(rt)
	actual, _ := planCache.LoadOrStore(rt, p)
	return actual.(*bindPlan)
}

func buildPlan(rt reflect.Type) *bindPlan {
	var fields []boundField
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if f.PkgPath != "" {
			continue
		}
		jsonTag := f.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}
		key := f.Name
		if jsonTag != "" {
			if seg := strings.Split(jsonTag, ",")[0]; seg != "" {
				key = seg
			}
		}

		ft := f.Type
		isPtr := ft.Kind() == reflect.Ptr
		if isPtr {
			ft = ft.Elem()
		}
		switch ft.Kind() {
		case reflect.String, reflect.Bool,
			reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64:
		default:
			continue
		}

		enum, c := parseTag(f.Tag.Get("bundle"))
		fields = append(fields, boundField{
			key:       key,
			index:     i,
			kind:      ft.Kind(),
			isPointer: isPtr,
			enum:      enum,
			c:         c,
		})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].key < fields[j].key })
	return &bindPlan{fields: fields}
}

func assign(dst reflect.Value, val any, f boundField) error {
	if val == nil {
		return errors.New("null provided for primitive field")
	}
	switch f.kind {
	case reflect.String:
		s, ok := val.(string)
		if !ok {
			return typeErr("string", val)
		}
		if len(f.enum) > 0 && !contains(f.enum, s) {
			return fmt.Errorf("value %q not in enum", s)
		}
		if f.c.MinLength != nil && len(s) < *f.c.MinLength {
			return fmt.Errorf("minLength violation (%d)", *f.c.MinLength)
		}
		if f.c.MaxLength != nil && len(s) > *f.c.MaxLength {
			return fmt.Errorf("maxLength violation (%d)", *f.c.MaxLength)
		}
		dst.SetString(s)
	case reflect.Bool:
		bv, ok := val.(bool)
		if !ok {
			return typeErr("boolean", val)
		}
		dst.SetBool(bv)
	default:
		n, ok := asFloat(val)
		if !ok {
			return typeErr("number", val)
		}
		if f.c.Minimum != nil && n < *f.c.Minimum {
			return fmt.Errorf("minimum violation (%g)", *f.c.Minimum)
		}
		if f.c.Maximum != nil && n > *f.c.Maximum {
			return fmt.Errorf("maximum violation (%g)", *f.c.Maximum)
		}
		assignNumber(dst, n)
	}
	return nil
}

func assignNumber(dst reflect.Value, f float64) {
	// Integers round toward zero; negative values clamp to zero for unsigned kinds.
	switch dst.Kind() {
	case reflect.Float32, reflect.Float64:
		dst.SetFloat(f)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		dst.SetInt(int64(f))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if f < 0 {
			f = 0
		}
		dst.SetUint(uint64(f))
	}
}

func typeErr(expected string, got any) error { return fmt.Errorf("expected %s got %T", expected, got) }

func contains(vals []string, s string) bool {
	for _, v := range vals {
		if v == s {
			return true
		}
	}
	return false
}

func parseTag(tag string) (enum []string, c constraints) {
	if tag == "" {
		return
	}
	for _, p := range strings.Split(tag, ",") {
		if p == "" {
			continue
		}
		kv := strings.SplitN(p, "=", 2)
		key := kv[0]
		val := ""
		if len(kv) == 2 {
			val = kv[1]
		}
		switch key {
		case "enum":
			if val != "" {
				enum = strings.Split(val, "|")
			}
		case "minLength":
			if iv, err := parseInt(val); err == nil {
				c.MinLength = &iv
			}
		case "maxLength":
			if iv, err := parseInt(val); err == nil {
				c.MaxLength = &iv
			}
		case "minimum":
			if fv, err := parseFloat(val); err == nil {
				c.Minimum = &fv
			}
		case "maximum":
			if fv, err := parseFloat(val); err == nil {
				c.Maximum = &fv
			}
		}
	}
	return
}

func parseInt(s string) (int, error) {
	var i int
	_, err := fmt.Sscanf(s, "%d", &i)
	return i, err
}

func parseFloat(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(s, "%g", &f)
	return f, err
}
