package tidal

import (
	"bytes"
	"encoding/json"
	"errors"
)

var errNoPrimaryData = errors.New("response has no primary data")

// document is the JSON:API top-level object.
type document struct {
	Data     json.RawMessage  `json:"data"`
	Included []resourceObject `json:"included"`
	Links    struct {
		Next string `json:"next"`
		Meta struct {
			NextCursor string `json:"nextCursor"`
		} `json:"meta"`
	} `json:"links"`
}

type resourceObject struct {
	ID            string                  `json:"id"`
	Type          string                  `json:"type"`
	Attributes    attributes              `json:"attributes"`
	Relationships map[string]relationship `json:"relationships"`
}

type attributes struct {
	Title     string `json:"title"`
	Name      string `json:"name"`
	Version   string `json:"version"`
	ISRC      string `json:"isrc"`
	BarcodeID string `json:"barcodeId"`
	Duration  string `json:"duration"`
}

type relationship struct {
	Data json.RawMessage `json:"data"`
}

type identifier struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

func (i identifier) key() string {
	return i.Type + "/" + i.ID
}

// index maps included resources by type and id.
func (d *document) index() map[string]resourceObject {
	out := make(map[string]resourceObject, len(d.Included))
	for _, obj := range d.Included {
		out[identifier{ID: obj.ID, Type: obj.Type}.key()] = obj
	}
	return out
}

// primaryIdentifiers decodes data as a list of resource identifiers.
func (d *document) primaryIdentifiers() ([]identifier, error) {
	return decodeIdentifiers(d.Data)
}

// primaryObject decodes data as a single resource object.
func (d *document) primaryObject() (resourceObject, error) {
	var obj resourceObject
	if isNull(d.Data) {
		return obj, errNoPrimaryData
	}
	if err := json.Unmarshal(d.Data, &obj); err != nil {
		return obj, err
	}
	if obj.ID == "" {
		return obj, errNoPrimaryData
	}
	return obj, nil
}

// related returns the identifiers of a relationship, which may hold one
// identifier or a list.
func (o resourceObject) related(name string) []identifier {
	rel, ok := o.Relationships[name]
	if !ok {
		return nil
	}
	ids, err := decodeIdentifiers(rel.Data)
	if err != nil {
		return nil
	}
	return ids
}

func decodeIdentifiers(raw json.RawMessage) ([]identifier, error) {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return nil, nil
	}

	if raw[0] == '[' {
		var ids []identifier
		if err := json.Unmarshal(raw, &ids); err != nil {
			return nil, err
		}
		return ids, nil
	}

	var id identifier
	if err := json.Unmarshal(raw, &id); err != nil {
		return nil, err
	}
	return []identifier{id}, nil
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
