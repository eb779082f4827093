package recset

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
)

// maxCustomTypeDepth bounds custom type indirection. A field typed as a
// custom type that is directly defined as a primitive uses one hop.
const maxCustomTypeDepth = 10

// compiledSchema is a validated schema plus the resolved-type cache used
// during record validation.
type compiledSchema struct {
	Schema

	resolved map[string]resolvedType // field name -> primitive type
	allowed  map[string]struct{}     // nil when no allow-list is declared
	prohibit map[string]struct{}
}

// ValidateSchema checks a schema without building a record set.
// It returns a [*SchemaError] listing every problem, or nil.
func ValidateSchema(s Schema) error {
	_, err := compileSchema(s)

	return err
}

// compileSchema validates s and resolves every field type eagerly.
// All problems are collected; any problem rejects the whole schema.
func compileSchema(s Schema) (*compiledSchema, error) {
	s = s.clone()

	var problems []error

	report := func(err error) {
		problems = append(problems, err)
	}

	// Every custom type must reach a primitive within the hop limit.
	for _, name := range sortedKeys(s.CustomTypes) {
		if _, err := resolveDef(s.CustomTypes, Custom(name)); err != nil {
			report(fmt.Errorf("custom type %q: %w", name, err))
		}
	}

	resolved := make(map[string]resolvedType, len(s.FieldTypes))

	for _, field := range sortedKeys(s.FieldTypes) {
		def, err := resolveDef(s.CustomTypes, s.FieldTypes[field])
		if err != nil {
			report(fmt.Errorf("field %q: %w", field, err))

			continue
		}

		resolved[field] = resolvedType{TypeDef: def}
	}

	cs := &compiledSchema{Schema: s, resolved: resolved}

	if len(s.Allowed) > 0 {
		cs.allowed = toSet(s.Allowed)
	}

	cs.prohibit = toSet(s.Prohibit)

	for _, err := range cs.checkRoles() {
		report(err)
	}

	// Parameter checks run on every definition as written, custom or field-level.
	defs := make([]namedDef, 0, len(s.CustomTypes)+len(s.FieldTypes))
	for _, name := range sortedKeys(s.CustomTypes) {
		defs = append(defs, namedDef{fmt.Sprintf("custom type %q", name), s.CustomTypes[name]})
	}

	for _, name := range sortedKeys(s.FieldTypes) {
		defs = append(defs, namedDef{fmt.Sprintf("field %q", name), s.FieldTypes[name]})
	}

	for _, d := range defs {
		if err := checkParams(d.def); err != nil {
			report(fmt.Errorf("%s: %w", d.label, err))
		}
	}

	if s.Size != nil {
		if !s.Size.Condition.Valid() {
			report(fmt.Errorf("%w: unknown condition %q", ErrInvalidSizeCondition, s.Size.Condition))
		}

		if s.Size.Amount <= 0 {
			report(fmt.Errorf("%w: size limit for a record set must be greater than zero, got %d",
				ErrInvalidSizeCondition, s.Size.Amount))
		}
	}

	for _, field := range s.Auto {
		def, ok := resolved[field]
		if !ok {
			if _, typed := s.FieldTypes[field]; typed {
				continue // resolution problem already reported
			}

			report(fmt.Errorf("%w for untyped field %q", ErrUnsupportedAutoType, field))

			continue
		}

		switch def.Kind {
		case TypeInt, TypeDate, TypeUUID:
		default:
			report(fmt.Errorf("%w for field %q of type %s", ErrUnsupportedAutoType, field, def.Kind))
		}
	}

	if len(problems) > 0 {
		return nil, &SchemaError{Problems: problems}
	}

	// Patterns are known to compile at this point.
	for field, rt := range resolved {
		if rt.Kind == TypeRegexp {
			rt.re = regexp.MustCompile(anchorPattern(rt.Pattern))
			resolved[field] = rt
		}
	}

	return cs, nil
}

type namedDef struct {
	label string
	def   TypeDef
}

// checkRoles verifies role fields are neither prohibited nor outside the
// allow-list, and that the key is not auto-generated.
func (cs *compiledSchema) checkRoles() []error {
	var errs []error

	check := func(field, role string) {
		if _, ok := cs.prohibit[field]; ok {
			errs = append(errs, fmt.Errorf("%w: prohibited field %q specified as %s", ErrFieldConflict, field, role))
		}

		if cs.allowed != nil {
			if _, ok := cs.allowed[field]; !ok {
				errs = append(errs, fmt.Errorf("%w: non-allowed field %q specified as %s", ErrFieldConflict, field, role))
			}
		}
	}

	for _, f := range cs.Mandatory {
		check(f, "mandatory")
	}

	for _, f := range cs.Unique {
		check(f, "unique")
	}

	if cs.Key != "" {
		check(cs.Key, "primary key")

		if slices.Contains(cs.Auto, cs.Key) {
			errs = append(errs, fmt.Errorf("%w: primary key field %q cannot be auto-generated", ErrFieldConflict, cs.Key))
		}
	}

	for _, f := range sortedKeys(cs.FieldTypes) {
		check(f, "typed")
	}

	for _, f := range cs.Sort {
		check(f, "sort")
	}

	return errs
}

// resolveDef follows custom type links until a primitive definition.
func resolveDef(custom map[string]TypeDef, def TypeDef) (TypeDef, error) {
	seen := make(map[string]struct{})

	for hops := 0; def.Kind == TypeCustom; {
		hops++
		if hops > maxCustomTypeDepth {
			return TypeDef{}, fmt.Errorf("%w of %d", ErrCustomTypeDepth, maxCustomTypeDepth)
		}

		if _, ok := seen[def.Name]; ok {
			return TypeDef{}, fmt.Errorf("%w through %q", ErrCyclicCustomType, def.Name)
		}

		seen[def.Name] = struct{}{}

		next, ok := custom[def.Name]
		if !ok {
			return TypeDef{}, fmt.Errorf("%w: %q", ErrUndefinedCustomType, def.Name)
		}

		def = next
	}

	if def.Kind == TypeNone || def.Kind >= typeKindCount {
		return TypeDef{}, fmt.Errorf("%w %q", ErrUnknownType, def.Kind)
	}

	return def, nil
}

// checkParams validates the type-specific parameters of one definition.
func checkParams(def TypeDef) error {
	switch def.Kind {
	case TypeRegexp:
		if def.Pattern == "" {
			return fmt.Errorf("%w: empty pattern", ErrInvalidPattern)
		}

		if _, err := regexp.Compile(anchorPattern(def.Pattern)); err != nil {
			return fmt.Errorf("%w %q: %w", ErrInvalidPattern, def.Pattern, err)
		}
	case TypeRange:
		switch {
		case def.Min != nil && def.Max != nil:
			if *def.Min >= *def.Max {
				return fmt.Errorf("%w with maximum value %d and minimum value %d", ErrInvalidRange, *def.Max, *def.Min)
			}
		case def.Min != nil || def.Max != nil:
			return fmt.Errorf("%w: max and min must both be integers or both be absent", ErrInvalidRange)
		}
	case TypeSize:
		if def.Limit <= 0 {
			return fmt.Errorf("%w, got %d", ErrInvalidSizeLimit, def.Limit)
		}
	case TypeEnum:
		if len(def.Values) == 0 {
			return ErrEmptyEnum
		}
	}

	return nil
}

func anchorPattern(pattern string) string {
	return `^(?:` + pattern + `)`
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}

	return set
}
