package tpccbench

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hhkbp2/tpccbench/log"
	"github.com/hhkbp2/tpccbench/store"
	"github.com/spf13/viper"
)

type Properties map[string]string

func NewProperties() Properties {
	return make(Properties)
}

func (self Properties) Get(key string) string {
	v, _ := self[key]
	return v
}

func (self Properties) GetDefault(key string, defaultValue string) string {
	if v, ok := self[key]; ok {
		return v
	}
	return defaultValue
}

func (self Properties) Add(key, value string) {
	self[key] = value
}

// Merge copies every property of other, overwriting existing keys.
func (self Properties) Merge(other Properties) {
	for k, v := range other {
		self[k] = v
	}
}

// Keys returns the property names in order.
func (self Properties) Keys() []string {
	keys := make([]string, 0, len(self))
	for k := range self {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// The typed getters fall back to the Default twin of the key and fail with
// a ValidationError on malformed values.

func (self Properties) GetInt(key string) (int, error) {
	s := strings.TrimSpace(self.GetDefault(key, PropertyDefaults[key]))
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, store.NewValidationError("invalid %s %q: not an integer", key, s)
	}
	return v, nil
}

func (self Properties) GetInt64(key string) (int64, error) {
	s := strings.TrimSpace(self.GetDefault(key, PropertyDefaults[key]))
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, store.NewValidationError("invalid %s %q: not an integer", key, s)
	}
	return v, nil
}

func (self Properties) GetBool(key string) (bool, error) {
	s := strings.TrimSpace(self.GetDefault(key, PropertyDefaults[key]))
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, store.NewValidationError("invalid %s %q: not a boolean", key, s)
	}
	return v, nil
}

// GetDuration reads a plain number as a count of unit, or a Go duration
// string like "90s".
func (self Properties) GetDuration(key string, unit time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(self.GetDefault(key, PropertyDefaults[key]))
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * unit, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, store.NewValidationError("invalid %s %q: not a duration", key, s)
	}
	return d, nil
}

// LoadProperties reads a config file in any format viper knows, picked by
// the file extension: properties, yaml, json or toml. Nested keys are
// flattened with dots, so "mysql: {host: x}" becomes "mysql.host".
func LoadProperties(path string) (Properties, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("properties")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	return propertiesOf(v), nil
}

func propertiesOf(v *viper.Viper) Properties {
	props := NewProperties()
	for _, key := range v.AllKeys() {
		switch value := v.Get(key).(type) {
		case []interface{}:
			parts := make([]string, 0, len(value))
			for _, p := range value {
				parts = append(parts, fmt.Sprint(p))
			}
			props.Add(key, strings.Join(parts, ","))
		case []string:
			props.Add(key, strings.Join(value, ","))
		default:
			props.Add(key, v.GetString(key))
		}
	}
	return props
}

func Output(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, format, args...)
	fmt.Fprintln(os.Stdout)
}

// OutputProperties logs the effective properties at debug level.
func OutputProperties(logger log.Logger, p Properties) {
	for _, k := range p.Keys() {
		logger.Debug("property", "key", k, "value", p[k])
	}
}
