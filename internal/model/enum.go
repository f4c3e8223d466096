package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Code is a wire-format enum code. Clients send it either as a JSON number
// (1) or as a numeric string ("1").
type Code string

// UnmarshalJSON accepts numbers and strings.
func (c *Code) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Code(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("code must be a number or a string: %w", err)
	}
	*c = Code(n.String())
	return nil
}

const (
	KindBrand    = "brand"
	KindCategory = "type"
)

// UnknownCodeError is returned when a code has no entry in its lookup table.
type UnknownCodeError struct {
	Kind string
	Code Code
}

func (e *UnknownCodeError) Error() string {
	return fmt.Sprintf("unknown %s code %q", e.Kind, string(e.Code))
}

var brandLabels = map[Code]string{
	"0": "iphone",
	"1": "samsung",
	"2": "xiaomi",
	"3": "redmi",
}

var categoryLabels = map[Code]string{
	"1": "hot",
	"2": "sale",
	"3": "new",
}

// DecodeBrand maps a brand code to its canonical label.
func DecodeBrand(code Code) (string, error) {
	return decode(brandLabels, KindBrand, code)
}

// DecodeCategory maps a category code to its canonical label.
func DecodeCategory(code Code) (string, error) {
	return decode(categoryLabels, KindCategory, code)
}

func decode(table map[Code]string, kind string, code Code) (string, error) {
	label, ok := table[code]
	if !ok {
		return "", &UnknownCodeError{Kind: kind, Code: code}
	}
	return label, nil
}
