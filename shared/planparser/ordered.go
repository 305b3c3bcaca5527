package planparser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// OrderedBlock is a prompt block object that keeps the key order it was
// written in, so stage lookup can honor the first matching key.
type OrderedBlock struct {
	Keys   []string
	Values map[string]any
}

func (b OrderedBlock) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range b.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(b.Values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// decodeOrdered decodes data like json.Unmarshal into an any, except that
// objects held under a promptBlock key become OrderedBlock values.
func decodeOrdered(data []byte) (any, error) {
	if !json.Valid(data) {
		// Let Unmarshal produce the usual syntax error.
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return nil, errors.New("invalid JSON")
	}
	return decodeValue(json.NewDecoder(bytes.NewReader(data)), false)
}

func decodeValue(dec *json.Decoder, ordered bool) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch delim {
	case '[':
		list := []any{}
		for dec.More() {
			v, err := decodeValue(dec, false)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		_, err := dec.Token()
		return list, err

	case '{':
		block := OrderedBlock{Values: map[string]any{}}
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := kt.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected object key %v", kt)
			}
			v, err := decodeValue(dec, key == "promptBlock")
			if err != nil {
				return nil, err
			}
			if _, dup := block.Values[key]; !dup {
				block.Keys = append(block.Keys, key)
			}
			block.Values[key] = v
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		if ordered {
			return block, nil
		}
		return block.Values, nil
	}
	return nil, fmt.Errorf("unexpected delimiter %v", delim)
}
