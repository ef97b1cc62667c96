package env

import (
	"encoding"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strconv"
	"strings"
)

var textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()

// OverrideStruct populates the struct fields with values from environment variables
// based on the 'env' custom tag, recursively handling nested structs.
//
// Fields whose pointer type implements encoding.TextUnmarshaler are decoded with
// UnmarshalText. String slices are read as comma-separated lists.
func OverrideStruct(v any) error {
	val := reflect.ValueOf(v)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("override struct: expected a non-nil pointer to a struct, got %T", v)
	}

	val = val.Elem()
	if val.Kind() != reflect.Struct {
		return fmt.Errorf("override struct: expected a pointer to a struct, got %T (%s)", v, val.Kind())
	}

	typ := val.Type()
	for i := range typ.NumField() {
		field := typ.Field(i)
		fieldValue := val.Field(i)

		if !field.IsExported() {
			continue
		}

		envVarName := field.Tag.Get("env")
		if envVarName != "" {
			if err := setFromEnv(fieldValue, field.Name, envVarName); err != nil {
				return err
			}
			continue
		}

		switch {
		case fieldValue.Kind() == reflect.Struct:
			if err := OverrideStruct(fieldValue.Addr().Interface()); err != nil {
				return fmt.Errorf("override nested struct %s: %w", field.Name, err)
			}
		case fieldValue.Kind() == reflect.Ptr && fieldValue.Type().Elem().Kind() == reflect.Struct:
			if fieldValue.IsNil() {
				fieldValue.Set(reflect.New(fieldValue.Type().Elem()))
			}
			if err := OverrideStruct(fieldValue.Interface()); err != nil {
				return fmt.Errorf("override nested pointer struct %s: %w", field.Name, err)
			}
		}
	}
	return nil
}

func setFromEnv(fieldValue reflect.Value, fieldName, envVarName string) error {
	envVarValue, ok := os.LookupEnv(envVarName)
	if !ok || envVarValue == "" {
		slog.Debug("Environment variable not set for field", "env", envVarName, "field", fieldName)
		return nil
	}

	if !fieldValue.CanSet() {
		return fmt.Errorf("field %s cannot be set from env var %s", fieldName, envVarName)
	}

	if fieldValue.CanAddr() && fieldValue.Addr().Type().Implements(textUnmarshalerType) {
		u, _ := fieldValue.Addr().Interface().(encoding.TextUnmarshaler)
		if err := u.UnmarshalText([]byte(envVarValue)); err != nil {
			return fmt.Errorf("decode field %s from env var %s: %w", fieldName, envVarName, err)
		}
		return nil
	}

	const parseErrFmt = "parse %s for field %s from env var %s: %w"

	switch fieldValue.Kind() {
	case reflect.String:
		fieldValue.SetString(envVarValue)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(envVarValue, 10, fieldValue.Type().Bits())
		if err != nil {
			return fmt.Errorf(parseErrFmt, "int", fieldName, envVarName, err)
		}
		fieldValue.SetInt(intValue)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		uintValue, err := strconv.ParseUint(envVarValue, 10, fieldValue.Type().Bits())
		if err != nil {
			return fmt.Errorf(parseErrFmt, "uint", fieldName, envVarName, err)
		}
		fieldValue.SetUint(uintValue)
	case reflect.Float32, reflect.Float64:
		floatValue, err := strconv.ParseFloat(envVarValue, fieldValue.Type().Bits())
		if err != nil {
			return fmt.Errorf(parseErrFmt, "float", fieldName, envVarName, err)
		}
		fieldValue.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(envVarValue)
		if err != nil {
			return fmt.Errorf(parseErrFmt, "bool", fieldName, envVarName, err)
		}
		fieldValue.SetBool(boolValue)
	case reflect.Slice:
		if fieldValue.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s for field %s (env var: %s)", fieldValue.Type(), fieldName, envVarName)
		}
		parts := strings.Split(envVarValue, ",")
		items := reflect.MakeSlice(fieldValue.Type(), 0, len(parts))
		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				items = reflect.Append(items, reflect.ValueOf(part))
			}
		}
		fieldValue.Set(items)
	default:
		return fmt.Errorf("unsupported field type %s for field %s (env var: %s)", fieldValue.Kind(), fieldName, envVarName)
	}

	return nil
}

// Env returns the value of the environment variable named by the key.
// If the variable is not present in the environment, it returns the provided fallback value.
func Env(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
