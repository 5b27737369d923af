package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/JonMunkholm/xlcalc/internal/cellref"
)

// Inputs maps cell identifiers to the value written into them.
type Inputs map[string]float64

// Outputs lists requested cell identifiers in request order. Duplicates are
// kept so every requested occurrence gets its own slot.
type Outputs []string

// ResolveFileVersion picks a stored version of name. version is the stored
// version number, not a position in the version list; 0 selects the newest
// one. The returned FileVersion carries the resolved number.
func (s *Service) ResolveFileVersion(ctx context.Context, name string, version int) (FileVersion, error) {
	if version < 0 {
		return FileVersion{}, validationf("VAL006", "version should be a positive number")
	}

	files, err := s.models.FindVersions(ctx, name)
	if err != nil {
		return FileVersion{}, fmt.Errorf("find versions of %q: %w", name, err)
	}
	if len(files) == 0 {
		return FileVersion{}, notFoundf("NF001", "please upload %q first", name)
	}
	if version == 0 {
		return files[0], nil
	}
	for _, f := range files {
		if f.Version == version {
			return f, nil
		}
	}
	return FileVersion{}, notFoundf("NF002", "no such version %d for %q", version, name)
}

// ParseInputOutput validates the JSON cell specifications of a calculation
// request. Inputs are objects with sheet, cell and value; outputs are
// objects with sheet and cell. Each cell expression is expanded against
// file. Any invalid element rejects the whole request.
func ParseInputOutput(file string, inputJSON, outputJSON []byte) (Inputs, Outputs, error) {
	inElems, inErr := decodeSpecList(inputJSON)
	outElems, outErr := decodeSpecList(outputJSON)
	if inErr != nil || outErr != nil {
		if errors.Is(inErr, errNotList) || errors.Is(outErr, errNotList) {
			return nil, nil, validationf("VAL004", "input and output should be lists")
		}
		return nil, nil, validationf("VAL004", "cannot load input and output, they should be JSON strings")
	}

	inputs := make(Inputs)
	for i, elem := range inElems {
		obj, ok := elem.(map[string]any)
		if !ok || !hasKeys(obj, "sheet", "cell", "value") {
			return nil, nil, validationf("VAL002", "missing parameter as an input cell in element %d: %s", i, describe(elem))
		}
		ids, err := expandSpec(file, obj)
		if err != nil {
			return nil, nil, newError(KindParse, "VAL005", err, "cell ID mistake in input element %d: %s", i, describe(elem))
		}
		value, ok := toNumber(obj["value"])
		if !ok {
			return nil, nil, validationf("VAL003", "value is not a number in input element %d: %s", i, describe(elem))
		}
		for _, id := range ids {
			inputs[id] = value
		}
	}

	var outputs Outputs
	for i, elem := range outElems {
		obj, ok := elem.(map[string]any)
		if !ok || !hasKeys(obj, "sheet", "cell") {
			return nil, nil, validationf("VAL002", "missing parameter as an output cell in element %d: %s", i, describe(elem))
		}
		ids, err := expandSpec(file, obj)
		if err != nil {
			return nil, nil, newError(KindParse, "VAL005", err, "cell ID mistake in output element %d: %s", i, describe(elem))
		}
		outputs = append(outputs, ids...)
	}

	return inputs, outputs, nil
}

var errNotList = errors.New("not a JSON list")

// decodeSpecList decodes a JSON array, keeping numbers as json.Number.
func decodeSpecList(data []byte) ([]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	list, ok := v.([]any)
	if !ok {
		return nil, errNotList
	}
	return list, nil
}

func hasKeys(obj map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := obj[k]; !ok {
			return false
		}
	}
	return true
}

// expandSpec expands the sheet and cell members of a cell specification.
func expandSpec(file string, obj map[string]any) ([]string, error) {
	sheet, ok := obj["sheet"].(string)
	if !ok {
		return nil, fmt.Errorf("sheet must be a string")
	}
	cell, ok := obj["cell"].(string)
	if !ok {
		return nil, fmt.Errorf("cell must be a string")
	}
	return cellref.Expand(file, sheet, cell)
}

// toNumber coerces a decoded JSON value into a finite float.
func toNumber(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = n
	case bool:
		if x {
			f = 1
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func describe(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
