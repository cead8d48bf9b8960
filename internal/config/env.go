package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Keys lists every leaf configuration key, such as "server.port".
func Keys() []string {
	var keys []string
	collectKeys(reflect.TypeOf(Config{}), "", &keys)
	return keys
}

func collectKeys(t reflect.Type, prefix string, keys *[]string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		if f.Type.Kind() == reflect.Struct && f.Type != durationType {
			collectKeys(f.Type, key, keys)
			continue
		}
		*keys = append(*keys, key)
	}
}

// BindEnv registers every key with v so Unmarshal sees SITEKIT_ overrides
// for keys that appear in no config file. AutomaticEnv alone only answers
// Get calls for keys viper already knows.
func BindEnv(v *viper.Viper) error {
	for _, key := range Keys() {
		if err := v.BindEnv(key); err != nil {
			return err
		}
	}
	return nil
}
