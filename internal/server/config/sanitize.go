package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Sanitize returns a copy of the config with secrets masked, for logging.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg

	sanitized.Snapshot.EncryptionPassphrase = maskSecret(cfg.Snapshot.EncryptionPassphrase)
	sanitized.Snapshot.S3.SecretAccessKey = maskSecret(cfg.Snapshot.S3.SecretAccessKey)
	sanitized.Snapshot.Redis.Password = maskSecret(cfg.Snapshot.Redis.Password)
	sanitized.Summary.Redis.Password = maskSecret(cfg.Summary.Redis.Password)

	return &sanitized
}

// maskSecret masks a secret value for safe logging. Empty stays empty.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

// Flatten returns the config as dotted koanf keys mapped to display
// values. Durations use their String form.
func Flatten(cfg *ServerConfig) map[string]string {
	out := make(map[string]string)
	flatten(reflect.ValueOf(cfg).Elem(), "", out)
	return out
}

var durationType = reflect.TypeOf(time.Duration(0))

func flatten(v reflect.Value, prefix string, out map[string]string) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("koanf")
		if tag == "" || !field.IsExported() {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		fv := v.Field(i)
		switch {
		case fv.Type() == durationType:
			out[key] = time.Duration(fv.Int()).String()
		case fv.Kind() == reflect.Struct:
			flatten(fv, key, out)
		default:
			out[key] = fmt.Sprint(fv.Interface())
		}
	}
}
