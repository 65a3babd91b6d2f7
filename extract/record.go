package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Entity is one extracted object (a client, a pension, a goal, ...). Values
// are whatever the model returned: strings, json.Number, bools, nested maps
// and slices, or nil.
type Entity map[string]any

// String returns the trimmed string value at key, or "" when the key is
// absent, null, or not a string.
func (e Entity) String(key string) string {
	s, _ := e[key].(string)
	return strings.TrimSpace(s)
}

// Name is the entity's "name" attribute.
func (e Entity) Name() string { return e.String("name") }

// Owner is the entity's "owner" attribute, used by pensions and investments.
func (e Entity) Owner() string { return e.String("owner") }

// Assets groups the asset lists of a record.
type Assets struct {
	Properties  []Entity `json:"properties,omitempty"`
	Pensions    []Entity `json:"pensions,omitempty"`
	Investments []Entity `json:"investments,omitempty"`
}

// Goals groups the goal sections of a record. Only Retirement becomes a graph
// node; the rest is carried for the ledger.
type Goals struct {
	Retirement Entity   `json:"retirement,omitempty"`
	Education  Entity   `json:"education,omitempty"`
	OtherGoals []Entity `json:"other_goals,omitempty"`
}

// Record is the structured result of one extraction. Every field is optional.
type Record struct {
	Clients         []Entity `json:"clients,omitempty"`
	Dependants      []Entity `json:"dependants,omitempty"`
	Assets          Assets   `json:"assets"`
	Liabilities     []Entity `json:"liabilities,omitempty"`
	Protection      []Entity `json:"protection,omitempty"`
	Goals           Goals    `json:"goals"`
	TaxInfo         Entity   `json:"tax_info,omitempty"`
	Recommendations []Entity `json:"recommendations,omitempty"`
	Adviser         string   `json:"adviser,omitempty"`
	DocumentType    string   `json:"document_type,omitempty"`

	// Raw is the JSON object the record was decoded from.
	Raw json.RawMessage `json:"-"`

	keys    int
	dropped []string
}

// HasClients reports whether the record names at least one client.
func (r *Record) HasClients() bool {
	return r != nil && len(r.Clients) > 0
}

// IsEmpty reports whether the record carries nothing at all. A decoded
// record is empty only when its JSON object had no keys; an object whose
// sections are all present but empty is a valid answer for a document with
// nothing to extract.
func (r *Record) IsEmpty() bool {
	if r == nil {
		return true
	}
	if r.keys > 0 {
		return false
	}
	return len(r.Clients) == 0 &&
		len(r.Dependants) == 0 &&
		len(r.Assets.Properties) == 0 &&
		len(r.Assets.Pensions) == 0 &&
		len(r.Assets.Investments) == 0 &&
		len(r.Liabilities) == 0 &&
		len(r.Protection) == 0 &&
		len(r.Goals.Retirement) == 0 &&
		len(r.Goals.Education) == 0 &&
		len(r.Goals.OtherGoals) == 0 &&
		len(r.TaxInfo) == 0 &&
		len(r.Recommendations) == 0 &&
		r.Adviser == "" &&
		r.DocumentType == ""
}

// Dropped lists the sections that were ignored because of their shape.
func (r *Record) Dropped() []string {
	if r == nil {
		return nil
	}
	return r.dropped
}

// Decode parses a JSON object into a Record. Numbers are kept as json.Number
// so integral values stay integral.
//
// Only input that is not a JSON object is an error. Each section is decoded
// on its own: a list given as a single object becomes a one-entry list, and
// a section with any other unexpected shape is dropped (see Dropped) while
// the rest of the record is kept.
func Decode(data []byte) (*Record, error) {
	data = bytes.TrimSpace(data)
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, err
	}
	if top == nil {
		return nil, errNotObject
	}

	d := &sectionDecoder{}
	rec := &Record{
		Clients:         d.list("clients", top["clients"]),
		Dependants:      d.list("dependants", top["dependants"]),
		Liabilities:     d.list("liabilities", top["liabilities"]),
		Protection:      d.list("protection", top["protection"]),
		TaxInfo:         d.entity("tax_info", top["tax_info"]),
		Recommendations: d.list("recommendations", top["recommendations"]),
		Adviser:         d.name("adviser", top["adviser"]),
		DocumentType:    d.name("document_type", top["document_type"]),
		Raw:             json.RawMessage(data),
		keys:            len(top),
	}
	if assets := d.object("assets", top["assets"]); assets != nil {
		rec.Assets = Assets{
			Properties:  d.list("assets.properties", assets["properties"]),
			Pensions:    d.list("assets.pensions", assets["pensions"]),
			Investments: d.list("assets.investments", assets["investments"]),
		}
	}
	if goals := d.object("goals", top["goals"]); goals != nil {
		rec.Goals = Goals{
			Retirement: d.entity("goals.retirement", goals["retirement"]),
			Education:  d.entity("goals.education", goals["education"]),
			OtherGoals: d.list("goals.other_goals", goals["other_goals"]),
		}
	}

	rec.dropped = d.dropped
	if len(d.dropped) > 0 {
		slog.Warn("extract: ignored sections with unexpected shape", "sections", d.dropped)
	}
	return rec, nil
}

var errNotObject = errors.New("extract: response is not a JSON object")

// sectionDecoder decodes record sections leniently and remembers what it
// had to drop.
type sectionDecoder struct {
	dropped []string
}

func (d *sectionDecoder) drop(field string) {
	d.dropped = append(d.dropped, field)
}

// list accepts an array of objects or a single object. Non-object array
// elements are dropped individually.
func (d *sectionDecoder) list(field string, raw json.RawMessage) []Entity {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return nil
	}
	switch raw[0] {
	case '{':
		if e := d.entity(field, raw); e != nil {
			return []Entity{e}
		}
		return nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			d.drop(field)
			return nil
		}
		out := make([]Entity, 0, len(items))
		for i, item := range items {
			if e := d.entity(fmt.Sprintf("%s[%d]", field, i), item); e != nil {
				out = append(out, e)
			}
		}
		return out
	}
	d.drop(field)
	return nil
}

// entity accepts a JSON object; null yields nil silently.
func (d *sectionDecoder) entity(field string, raw json.RawMessage) Entity {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return nil
	}
	if raw[0] != '{' {
		d.drop(field)
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var e Entity
	if err := dec.Decode(&e); err != nil {
		d.drop(field)
		return nil
	}
	return e
}

// object returns the raw members of a nested section such as assets.
func (d *sectionDecoder) object(field string, raw json.RawMessage) map[string]json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return nil
	}
	var m map[string]json.RawMessage
	if raw[0] != '{' || json.Unmarshal(raw, &m) != nil {
		d.drop(field)
		return nil
	}
	return m
}

func (d *sectionDecoder) name(field string, raw json.RawMessage) string {
	name, err := decodeName(raw)
	if err != nil {
		d.drop(field)
		return ""
	}
	return name
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// decodeName accepts null, a string, or an object carrying "name".
func decodeName(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	case '{':
		var obj struct {
			Name *string `json:"name"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return "", err
		}
		if obj.Name == nil {
			return "", nil
		}
		return strings.TrimSpace(*obj.Name), nil
	}
	return "", fmt.Errorf("unexpected value %s", truncate(string(raw), 40))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
