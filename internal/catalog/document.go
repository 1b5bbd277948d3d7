package catalog

import (
	"fmt"
	"strings"
)

// Document is the flattened, labeled text of one Record, ready for embedding.
type Document struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Record Record `json:"record"`
}

var documentLayout = []struct {
	label string
	value func(Record) string
}{
	{"PRODUIT", func(r Record) string { return r.Name }},
	{"RÉFÉRENCE", func(r Record) string { return r.Reference }},
	{"CATÉGORIE", func(r Record) string { return r.Category }},
	{"ORIGINE", func(r Record) string { return r.Origin }},
	{"LABEL", func(r Record) string { return r.Label }},
	{"CERTIFICATION", func(r Record) string { return r.Certification }},
	{"DATE", func(r Record) string { return r.Date }},
	{"DIMENSIONS", func(r Record) string { return r.Dimensions }},
	{"PRIX", func(r Record) string { return r.Price }},
	{"DESCRIPTION", func(r Record) string { return r.Description }},
	{"IMAGE", func(r Record) string { return r.Image }},
}

// Synthesize renders r as one "LABEL: value" line per field, always in the
// same order and with no field omitted.
func Synthesize(r Record) Document {
	var sb strings.Builder
	for i, l := range documentLayout {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(l.label)
		sb.WriteString(": ")
		sb.WriteString(l.value(r))
	}
	return Document{
		ID:     DocumentID(r),
		Text:   sb.String(),
		Record: r,
	}
}

// SynthesizeAll renders records in order.
func SynthesizeAll(records []Record) []Document {
	docs := make([]Document, len(records))
	for i, r := range records {
		docs[i] = Synthesize(r)
	}
	return docs
}

// DocumentID derives a stable identifier from the record's source position.
func DocumentID(r Record) string {
	return fmt.Sprintf("%s#%d", r.Table, r.Row)
}

// Texts returns the Text of each document.
func Texts(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Text
	}
	return out
}
