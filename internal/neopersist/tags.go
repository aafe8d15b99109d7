package neopersist

import (
	"fmt"
	"reflect"
	"strings"
)

// entityMetadata holds the parsed `crud` tag information for a specific struct type.
// This metadata is cached by the PersistenceManager to avoid costly reflection on every call.
type entityMetadata struct {
	// Label is the graph node label, defaulting to the struct's name.
	Label string
	// PKField is the name of the struct field marked as the primary key.
	PKField string
	// PKProp is the property name of the primary key in the database.
	PKProp string
	// Mappings maps struct field names to their corresponding database property names.
	Mappings map[string]string
}

// parseTagsFromType inspects a reflect.Type and extracts persistence metadata from
// `crud` struct tags. Recognized components are `pk`, `property:<name>` and
// `label:<Label>` (which overrides the struct name).
func parseTagsFromType(typ reflect.Type) (*entityMetadata, error) {
	// If the type is a pointer, get the underlying element's type.
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("type %s is not a struct", typ.Name())
	}

	meta := &entityMetadata{
		Label:    typ.Name(),
		Mappings: make(map[string]string),
	}

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		tag := field.Tag.Get("crud")

		// Skip fields that are not part of the persistence mapping.
		if tag == "" {
			continue
		}

		isPk := false
		propName := ""

		for _, part := range strings.Split(tag, ",") {
			switch {
			case part == "pk":
				isPk = true
			case strings.HasPrefix(part, "property:"):
				propName = strings.TrimPrefix(part, "property:")
			case strings.HasPrefix(part, "label:"):
				meta.Label = strings.TrimPrefix(part, "label:")
			}
		}

		if propName == "" {
			return nil, fmt.Errorf("field %s is missing 'property' tag component", field.Name)
		}
		if err := checkIdent("property", propName); err != nil {
			return nil, err
		}

		if isPk {
			meta.PKField = field.Name
			meta.PKProp = propName
		}
		meta.Mappings[field.Name] = propName
	}

	if meta.PKField == "" {
		return nil, fmt.Errorf("no primary key ('pk') tag defined for struct %s", typ.Name())
	}
	if err := checkIdent("label", meta.Label); err != nil {
		return nil, err
	}

	return meta, nil
}

// parseTags is a generic convenience wrapper around parseTagsFromType.
func parseTags[T any]() (*entityMetadata, error) {
	var instance T
	return parseTagsFromType(reflect.TypeOf(instance))
}

// propertiesOf reads every mapped field of entity into a property map.
func propertiesOf(entity any, meta *entityMetadata) map[string]any {
	val := reflect.ValueOf(entity)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	props := make(map[string]any, len(meta.Mappings))
	for fieldName, propName := range meta.Mappings {
		props[propName] = val.FieldByName(fieldName).Interface()
	}
	return props
}

// mapPropsToStruct populates a struct's fields from node properties, based on the
// parsed metadata. Values the driver returns with a different but convertible type
// (int64 into int, []any into []string) are converted.
func mapPropsToStruct(props map[string]any, entity any, meta *entityMetadata) error {
	val := reflect.ValueOf(entity).Elem()

	for fieldName, propName := range meta.Mappings {
		field := val.FieldByName(fieldName)
		if !field.IsValid() || !field.CanSet() {
			continue // Skip if the struct field cannot be set.
		}

		propValue, ok := props[propName]
		if !ok || propValue == nil {
			continue // Skip if the property does not exist on the node.
		}

		if err := assign(field, reflect.ValueOf(propValue)); err != nil {
			return fmt.Errorf("property %s: %w", propName, err)
		}
	}
	return nil
}

func assign(field, value reflect.Value) error {
	switch {
	case value.Type().AssignableTo(field.Type()):
		field.Set(value)
	case field.Kind() == reflect.Slice && value.Kind() == reflect.Slice:
		out := reflect.MakeSlice(field.Type(), value.Len(), value.Len())
		for i := 0; i < value.Len(); i++ {
			item := value.Index(i)
			if item.Kind() == reflect.Interface {
				item = item.Elem()
			}
			if !item.IsValid() {
				continue
			}
			if err := assign(out.Index(i), item); err != nil {
				return err
			}
		}
		field.Set(out)
	case value.Type().ConvertibleTo(field.Type()) && (field.Kind() != reflect.String || value.Kind() == reflect.String):
		field.Set(value.Convert(field.Type()))
	default:
		return fmt.Errorf("cannot assign %s to %s", value.Type(), field.Type())
	}
	return nil
}
