// Package output renders chathub-cli results as a table, JSON or YAML.
//
// Table output is derived from struct fields by reflection. Header names
// come from json tags; a `table:"-"` tag hides a field and `table:"wide"`
// shows it only in wide mode. YAML output goes through the JSON encoding
// first so both machine formats use the same field names.
package output
