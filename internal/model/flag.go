package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Flag is a loosely typed boolean from the vendor API. It decodes from JSON
// booleans, numbers, strings and null.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = false
		return nil
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode flag: %w", err)
	}
	*f = Flag(Truthy(v))
	return nil
}

func (f Flag) MarshalJSON() ([]byte, error) {
	return json.Marshal(bool(f))
}

// Truthy reports whether a decoded JSON value counts as set. Falsy values are
// nil, false, 0, "", "0", "false" and "no".
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case json.Number:
		n, err := t.Float64()
		return err == nil && n != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "", "0", "false", "no", "null", "undefined":
			return false
		}
		return true
	default:
		return true
	}
}

// CustomerID is a vendor customer identifier that may arrive as a number or a
// numeric string.
type CustomerID int

func (id *CustomerID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if s == "" || s == "null" {
		*id = 0
		return nil
	}
	n, err := ParseCustomerID(s)
	if err != nil {
		return err
	}
	*id = CustomerID(n)
	return nil
}

// ParseCustomerID parses "42", " 42 " and "42.0" as 42.
func ParseCustomerID(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("invalid customer id %q", s)
	}
	return int(f), nil
}

// Count is a vendor counter that may arrive as a number, a numeric string or
// null. Values that do not parse decode as 0 so one bad field never fails a
// whole customer list.
type Count int

func (c *Count) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		*c = 0
		return nil
	}
	*c = Count(int(n))
	return nil
}
