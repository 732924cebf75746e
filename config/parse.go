package config

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/rainycape/odm/internal/stringutil"
	"github.com/rainycape/odm/log"
)

var (
	defaultFilename = ""
	urlType         = reflect.TypeOf((*URL)(nil))
)

type fieldValue struct {
	Value reflect.Value
	Tag   reflect.StructTag
}

type fieldMap map[string]*fieldValue

func (f fieldMap) Append(name string, value reflect.Value, tag reflect.StructTag) error {
	if _, ok := f[name]; ok {
		return fmt.Errorf("duplicate field name %q", name)
	}
	f[name] = &fieldValue{value, tag}
	return nil
}

// SetDefaultFilename sets the config file read by ParseArgs when
// no -config flag is provided. The empty string means no file.
func SetDefaultFilename(name string) {
	defaultFilename = name
}

// DefaultFilename returns the file set by SetDefaultFilename.
func DefaultFilename() string {
	return defaultFilename
}

func fileParameterName(name string) string {
	return stringutil.CamelCaseToLower(name, "_")
}

func flagParameterName(name string) string {
	return stringutil.CamelCaseToLower(name, "-")
}

func parseScalar(v reflect.Value, raw string) error {
	switch v.Type().Kind() {
	case reflect.Bool:
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		v.SetBool(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		value, err := strconv.ParseInt(raw, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetInt(value)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		value, err := strconv.ParseUint(raw, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetUint(value)
	case reflect.Float32, reflect.Float64:
		value, err := strconv.ParseFloat(raw, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetFloat(value)
	case reflect.String:
		v.SetString(raw)
	default:
		if v.Type() == urlType {
			u, err := ParseURL(raw)
			if err != nil {
				return err
			}
			v.Set(reflect.ValueOf(u))
			return nil
		}
		return fmt.Errorf("can't parse values of type %v", v.Type())
	}
	return nil
}

// parseValue parses raw into v. Slices are written as comma
// separated values, while maps use key=value pairs separated
// by commas. Items might be quoted to include commas or equal
// signs.
func parseValue(v reflect.Value, raw string) error {
	switch v.Type().Kind() {
	case reflect.Slice:
		items := stringutil.SplitQuoted(raw, ',')
		slice := reflect.MakeSlice(v.Type(), len(items), len(items))
		for ii, item := range items {
			if err := parseScalar(slice.Index(ii), stringutil.Unquote(item)); err != nil {
				return err
			}
		}
		v.Set(slice)
		return nil
	case reflect.Map:
		m := reflect.MakeMap(v.Type())
		for _, item := range stringutil.SplitQuoted(raw, ',') {
			kv := stringutil.SplitQuoted(item, '=')
			if len(kv) < 2 {
				return fmt.Errorf("invalid map item %q", item)
			}
			key := reflect.New(v.Type().Key()).Elem()
			if err := parseScalar(key, stringutil.Unquote(kv[0])); err != nil {
				return err
			}
			elem := reflect.New(v.Type().Elem()).Elem()
			if err := parseScalar(elem, stringutil.Unquote(strings.Join(kv[1:], "="))); err != nil {
				return err
			}
			m.SetMapIndex(key, elem)
		}
		v.Set(m)
		return nil
	}
	return parseScalar(v, raw)
}

// setValue sets v from a value decoded by a structured format
// (TOML or YAML).
func setValue(v reflect.Value, raw interface{}) error {
	switch x := raw.(type) {
	case string:
		if k := v.Type().Kind(); k == reflect.Slice || k == reflect.Map {
			return parseValue(v, x)
		}
		return parseScalar(v, x)
	case []interface{}:
		if v.Type().Kind() != reflect.Slice {
			return fmt.Errorf("can't assign a list to %v", v.Type())
		}
		slice := reflect.MakeSlice(v.Type(), len(x), len(x))
		for ii, item := range x {
			if err := parseScalar(slice.Index(ii), fmt.Sprint(item)); err != nil {
				return err
			}
		}
		v.Set(slice)
		return nil
	case map[string]interface{}:
		items := make(map[interface{}]interface{}, len(x))
		for k, val := range x {
			items[k] = val
		}
		return setMap(v, items)
	case map[interface{}]interface{}:
		return setMap(v, x)
	}
	return parseScalar(v, fmt.Sprint(raw))
}

func setMap(v reflect.Value, items map[interface{}]interface{}) error {
	if v.Type().Kind() != reflect.Map {
		return fmt.Errorf("can't assign a map to %v", v.Type())
	}
	m := reflect.MakeMap(v.Type())
	for k, val := range items {
		key := reflect.New(v.Type().Key()).Elem()
		if err := parseScalar(key, fmt.Sprint(k)); err != nil {
			return err
		}
		elem := reflect.New(v.Type().Elem()).Elem()
		if err := parseScalar(elem, fmt.Sprint(val)); err != nil {
			return err
		}
		m.SetMapIndex(key, elem)
	}
	v.Set(m)
	return nil
}

func configFields(value reflect.Value) (fieldMap, error) {
	fields := make(fieldMap)
	valueType := value.Type()
	for ii := 0; ii < value.NumField(); ii++ {
		field := value.Field(ii)
		sfield := valueType.Field(ii)
		if sfield.PkgPath != "" {
			continue
		}
		if field.Type().Kind() == reflect.Struct {
			subfields, err := configFields(field)
			if err != nil {
				return nil, err
			}
			for k, v := range subfields {
				if err := fields.Append(k, v.Value, v.Tag); err != nil {
					return nil, err
				}
			}
			continue
		}
		if def := sfield.Tag.Get("default"); def != "" {
			if err := parseValue(field, def); err != nil {
				return nil, fmt.Errorf("error parsing default value for field %q: %s", sfield.Name, err)
			}
		}
		if err := fields.Append(sfield.Name, field, sfield.Tag); err != nil {
			return nil, err
		}
	}
	return fields, nil
}

func structFields(config interface{}) (fieldMap, error) {
	value := reflect.ValueOf(config)
	if value.Kind() != reflect.Ptr || value.IsNil() {
		return nil, fmt.Errorf("config must be a non-nil pointer to a struct (it's %T)", config)
	}
	value = value.Elem()
	if value.Kind() != reflect.Struct {
		return nil, fmt.Errorf("config must be a pointer to a struct (it's %T)", config)
	}
	return configFields(value)
}

func assign(fields fieldMap, values map[string]interface{}, format string) error {
	for k, v := range fields {
		name := fileParameterName(k)
		raw, ok := values[name]
		if !ok {
			continue
		}
		if s, isString := raw.(string); isString && s == "" {
			continue
		}
		if err := setValue(v.Value, raw); err != nil {
			return fmt.Errorf("error parsing %s config field %q (struct field %q): %s", format, name, k, err)
		}
	}
	return nil
}

func readKeyValues(r io.Reader) (map[string]interface{}, error) {
	values := make(map[string]interface{})
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			values[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return values, scanner.Err()
}

// ParseReader parses a config in the key = value format from r
// into config, which must be a pointer to a struct. Fields which
// are not present keep their default values (from the default
// struct tag).
func ParseReader(r io.Reader, config interface{}) error {
	fields, err := structFields(config)
	if err != nil {
		return err
	}
	values, err := readKeyValues(r)
	if err != nil {
		return err
	}
	return assign(fields, values, "config")
}

// ParseTOML works like ParseReader, but parses a TOML document.
func ParseTOML(r io.Reader, config interface{}) error {
	fields, err := structFields(config)
	if err != nil {
		return err
	}
	var values map[string]interface{}
	if _, err := toml.NewDecoder(r).Decode(&values); err != nil {
		return err
	}
	return assign(fields, values, "TOML")
}

// ParseYAML works like ParseReader, but parses a YAML document.
func ParseYAML(r io.Reader, config interface{}) error {
	fields, err := structFields(config)
	if err != nil {
		return err
	}
	var values map[string]interface{}
	if err := yaml.NewDecoder(r).Decode(&values); err != nil && err != io.EOF {
		return err
	}
	return assign(fields, values, "YAML")
}

// ParseFile parses the given file into config. The format is chosen
// from the file extension: .toml files are parsed as TOML, .yaml and
// .yml as YAML and anything else with ParseReader.
func ParseFile(name string, config interface{}) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()
	switch strings.ToLower(filepath.Ext(name)) {
	case ".toml":
		err = ParseTOML(f, config)
	case ".yaml", ".yml":
		err = ParseYAML(f, config)
	default:
		err = ParseReader(f, config)
	}
	if err != nil {
		return fmt.Errorf("error parsing config file %s: %w", name, err)
	}
	return nil
}

type flagValue struct {
	value reflect.Value
	raw   *string
}

func (f *flagValue) String() string {
	if f.raw != nil {
		return *f.raw
	}
	if !f.value.IsValid() {
		return ""
	}
	if f.value.Type() == urlType {
		if f.value.IsNil() {
			return ""
		}
		return f.value.Interface().(*URL).String()
	}
	return fmt.Sprint(f.value.Interface())
}

func (f *flagValue) Set(s string) error {
	// Check the value now to report errors while parsing flags
	probe := reflect.New(f.value.Type()).Elem()
	if err := parseValue(probe, s); err != nil {
		return err
	}
	f.raw = &s
	return nil
}

func (f *flagValue) IsBoolFlag() bool {
	return f.value.Type().Kind() == reflect.Bool
}

// ParseArgs defines a flag for each field in config, parses args and
// then reads the config file named by the -config flag (or
// DefaultFilename). Values provided as flags override the ones in the
// file. Field names are mangled into lowercase words, so a field named
// LogDebug produces the -log-debug flag and the log_debug config key.
// The remaining non-flag arguments are returned.
func ParseArgs(name string, config interface{}, args []string) ([]string, error) {
	fields, err := structFields(config)
	if err != nil {
		return nil, err
	}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	configName := fs.String("config", defaultFilename, "Config file name")
	flags := make(map[string]*flagValue, len(fields))
	for k, v := range fields {
		fv := &flagValue{value: v.Value}
		fs.Var(fv, flagParameterName(k), v.Tag.Get("help"))
		flags[k] = fv
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *configName != "" {
		if err := ParseFile(*configName, config); err != nil {
			return nil, err
		}
	}
	for k, fv := range flags {
		if fv.raw != nil {
			if err := parseValue(fields[k].Value, *fv.raw); err != nil {
				return nil, err
			}
		}
	}
	return fs.Args(), nil
}

// MustParseArgs works like ParseArgs, but panics if there's an error.
func MustParseArgs(name string, config interface{}, args []string) []string {
	rem, err := ParseArgs(name, config, args)
	if err != nil {
		log.Panicf("error parsing config: %s", err)
	}
	return rem
}
