package schema

// Document is the schema body published to /1.0/s/{type}.
type Document struct {
	Attributes []AttributeDoc `json:"attributes"`
	Indexes    []IndexDoc     `json:"indexes"`
	Counters   []CounterDoc   `json:"counters"`
	Fulltexts  []FulltextDoc  `json:"fulltexts"`
	Version    *int64         `json:"version,omitempty"`
}

type AttributeDoc struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Nullable bool     `json:"nullable"`
	Values   []string `json:"values,omitempty"`
}

type ColumnDoc struct {
	Name      string `json:"name"`
	Sort      string `json:"sort,omitempty"`
	Transform string `json:"transform,omitempty"`
}

type IndexDoc struct {
	Name   string      `json:"name"`
	Unique bool        `json:"unique"`
	Cols   []ColumnDoc `json:"cols"`
}

type CounterDoc struct {
	Name string      `json:"name"`
	Cols []ColumnDoc `json:"cols"`
}

type FulltextDoc struct {
	Name                      string      `json:"name"`
	ParentType                string      `json:"parentType,omitempty"`
	ParentIdentifierAttribute string      `json:"parentIdentifierAttribute,omitempty"`
	Cols                      []ColumnDoc `json:"cols"`
}

// Doc renders the attribute declaration. Enum values are only listed for
// enums.
func (a *Attribute) Doc() AttributeDoc {
	d := AttributeDoc{Name: a.Name, Type: a.Type.Tag(), Nullable: a.Nullable}
	if a.Type == Enum {
		d.Values = a.Values
	}
	return d
}

// NewDocument assembles a schema document. Nil slices are rendered as empty
// JSON arrays.
func NewDocument(attrs []*Attribute, indexes []*Index, counters []*Counter, fulltext *Fulltext) *Document {
	doc := &Document{
		Attributes: make([]AttributeDoc, 0, len(attrs)),
		Indexes:    make([]IndexDoc, 0, len(indexes)),
		Counters:   make([]CounterDoc, 0, len(counters)),
		Fulltexts:  []FulltextDoc{},
	}
	for _, a := range attrs {
		doc.Attributes = append(doc.Attributes, a.Doc())
	}
	for _, i := range indexes {
		doc.Indexes = append(doc.Indexes, i.Doc())
	}
	for _, c := range counters {
		doc.Counters = append(doc.Counters, c.Doc())
	}
	if fulltext != nil {
		doc.Fulltexts = append(doc.Fulltexts, fulltext.Doc())
	}
	return doc
}

// WithVersion returns a copy carrying the version needed to replace an
// already published schema.
func (d *Document) WithVersion(v int64) *Document {
	out := *d
	out.Version = &v
	return &out
}
