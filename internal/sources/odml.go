package sources

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"strings"

	"metacat/internal/document"
)

// ── odML parser ────────────────────────────────────────────
// odML is a hierarchical metadata format (XML): a document of nested
// sections, each carrying named properties with typed values. The parsed
// tree is rooted under a single "Document" container, with section and
// property lists keyed by their names so the resulting dotted paths read
// Document.sections.<Section>.properties.<Property>.value.

type odmlParser struct{}

func init() { Register(&odmlParser{}) }

func (p *odmlParser) Extensions() []string { return []string{".odml"} }

type odmlRoot struct {
	XMLName  xml.Name      `xml:"odML"`
	Version  string        `xml:"version,attr"`
	Author   string        `xml:"author"`
	Date     string        `xml:"date"`
	Repo     string        `xml:"repository"`
	Sections []odmlSection `xml:"section"`
}

type odmlSection struct {
	Name       string         `xml:"name"`
	Type       string         `xml:"type"`
	Definition string         `xml:"definition"`
	Properties []odmlProperty `xml:"property"`
	Sections   []odmlSection  `xml:"section"`
}

type odmlProperty struct {
	Name       string   `xml:"name"`
	Values     []string `xml:"value"`
	Type       string   `xml:"type"`
	Unit       string   `xml:"unit"`
	Definition string   `xml:"definition"`
}

func (p *odmlParser) Parse(ctx context.Context, path string) ([]Doc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var root odmlRoot
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse odml: %w", err)
	}

	doc := document.Object()
	if root.Author != "" {
		doc.Set("author", document.Scalar(root.Author))
	}
	if root.Date != "" {
		doc.Set("date", document.Scalar(root.Date))
	}
	if root.Version != "" {
		doc.Set("version", document.Scalar(root.Version))
	}
	if root.Repo != "" {
		doc.Set("repository", document.Scalar(root.Repo))
	}
	if len(root.Sections) > 0 {
		doc.Set("sections", sectionsNode(root.Sections))
	}

	top := document.Object()
	top.Set("Document", doc)
	return []Doc{{Index: 0, Count: 1, Root: top}}, nil
}

// sectionsNode keys a section list by section name, so siblings become
// addressable containers instead of anonymous list entries.
func sectionsNode(sections []odmlSection) *document.Node {
	obj := document.Object()
	for _, sec := range sections {
		if sec.Name == "" {
			continue
		}
		obj.Set(sec.Name, sectionNode(sec))
	}
	return obj
}

func sectionNode(sec odmlSection) *document.Node {
	node := document.Object()
	node.Set("name", document.Scalar(sec.Name))
	if sec.Type != "" {
		node.Set("type", document.Scalar(sec.Type))
	}
	if sec.Definition != "" {
		node.Set("definition", document.Scalar(sec.Definition))
	}
	if len(sec.Properties) > 0 {
		props := document.Object()
		for _, prop := range sec.Properties {
			if prop.Name == "" {
				continue
			}
			props.Set(prop.Name, propertyNode(prop))
		}
		node.Set("properties", props)
	}
	if len(sec.Sections) > 0 {
		node.Set("sections", sectionsNode(sec.Sections))
	}
	return node
}

func propertyNode(prop odmlProperty) *document.Node {
	node := document.Object()
	node.Set("name", document.Scalar(prop.Name))
	node.Set("value", valueNode(prop))
	if prop.Type != "" {
		node.Set("type", document.Scalar(prop.Type))
	}
	if prop.Unit != "" {
		node.Set("unit", document.Scalar(prop.Unit))
	}
	if prop.Definition != "" {
		node.Set("definition", document.Scalar(prop.Definition))
	}
	return node
}

// valueNode converts a property's raw values using its declared type. A
// single value becomes a scalar; multiple values become a multi-valued
// field. odML 1.1 stores multiple values in one element as "[a,b,c]".
func valueNode(prop odmlProperty) *document.Node {
	var raw []string
	for _, v := range prop.Values {
		v = strings.TrimSpace(v)
		if strings.HasPrefix(v, "[") && strings.HasSuffix(v, "]") {
			for _, part := range strings.Split(v[1:len(v)-1], ",") {
				raw = append(raw, strings.TrimSpace(part))
			}
			continue
		}
		raw = append(raw, v)
	}

	items := make([]*document.Node, len(raw))
	for i, v := range raw {
		items[i] = document.Scalar(typedValue(v, prop.Type))
	}
	if len(items) == 1 {
		return items[0]
	}
	return document.List(items...)
}

func typedValue(s, declared string) any {
	switch declared {
	case "int":
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case "float":
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case "boolean", "bool":
		if b, err := strconv.ParseBool(strings.ToLower(s)); err == nil {
			return b
		}
	}
	return s
}
