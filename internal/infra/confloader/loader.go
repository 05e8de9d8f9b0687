package confloader

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix prefixes every environment variable the loader reads.
const DefaultEnvPrefix = "CHATHUB_"

const tagName = "koanf"

type options struct {
	file      string
	envPrefix string
	overrides map[string]any
}

// Option configures Load.
type Option func(*options)

// WithFile reads path as YAML. An empty path is ignored.
func WithFile(path string) Option {
	return func(o *options) { o.file = path }
}

// WithEnvPrefix replaces DefaultEnvPrefix.
func WithEnvPrefix(prefix string) Option {
	return func(o *options) { o.envPrefix = prefix }
}

// WithOverrides applies dotted keys after every other source.
func WithOverrides(values map[string]any) Option {
	return func(o *options) { o.overrides = values }
}

// Load merges the configured sources into target, a pointer to a struct
// with koanf tags. Fields no source mentions keep their current values, so
// callers pass a struct already holding defaults.
func Load(target any, opts ...Option) error {
	o := options{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		opt(&o)
	}

	k := koanf.New(".")
	if o.file != "" {
		if err := k.Load(file.Provider(o.file), yaml.Parser()); err != nil {
			return fmt.Errorf("read %s: %w", o.file, err)
		}
	}

	known := envKeys(reflect.TypeOf(target))
	envToKey := func(name string) string {
		name = strings.TrimPrefix(name, o.envPrefix)
		if key, ok := known[strings.ToUpper(name)]; ok {
			return key
		}
		return strings.ReplaceAll(strings.ToLower(name), "_", ".")
	}
	if err := k.Load(env.Provider(o.envPrefix, ".", envToKey), nil); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}

	if len(o.overrides) > 0 {
		if err := k.Load(mapProvider(o.overrides), nil); err != nil {
			return fmt.Errorf("apply overrides: %w", err)
		}
	}

	if err := k.UnmarshalWithConf("", target, koanf.UnmarshalConf{Tag: tagName}); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// envKeys indexes every leaf koanf key of t by its environment form:
// "snapshot.message_limit" under "SNAPSHOT_MESSAGE_LIMIT".
func envKeys(t reflect.Type) map[string]string {
	keys := make(map[string]string)
	walkKeys(t, "", func(key string) {
		keys[strings.ToUpper(strings.ReplaceAll(key, ".", "_"))] = key
	})
	return keys
}

func walkKeys(t reflect.Type, prefix string, leaf func(string)) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return
	}

	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get(tagName), ",")
		switch name {
		case "-":
			continue
		case "":
			name = strings.ToLower(f.Name)
		}
		if prefix != "" {
			name = prefix + "." + name
		}

		ft := f.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct && ft.PkgPath() != "time" {
			walkKeys(ft, name, leaf)
			continue
		}
		leaf(name)
	}
}
