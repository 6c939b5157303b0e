// Package playbook turns playbook templates into report content.
//
// A template's structure is an ordered forest of JSON nodes:
//
//	{"type": "container", "info": {"title": {"en": ...}, "description": {"en": ...}}, "children": [...]}
//	{"type": "procedure", "id": 42}
//
// Parse validates the whole forest and resolves procedure ids before
// anything is written, and Materialize inserts the validated tree.
package playbook

import (
	"encoding/json"
	"fmt"

	"github.com/jamesruggles/reportsuite/internal/database"
)

const (
	typeContainer = "container"
	typeProcedure = "procedure"
)

// InvalidStructureError reports a malformed or incomplete playbook tree.
type InvalidStructureError struct {
	Path   string
	Reason string
}

func (e *InvalidStructureError) Error() string {
	if e.Path == "" {
		return "invalid playbook structure: " + e.Reason
	}
	return fmt.Sprintf("invalid playbook structure at %s: %s", e.Path, e.Reason)
}

func invalid(path, format string, args ...any) error {
	return &InvalidStructureError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// Node is either a *Container or a *Procedure.
type Node interface {
	node()
}

type Container struct {
	Title       string
	Description string
	Children    []Node
}

type Procedure struct {
	TemplateID int64
	Content    database.ProcedureContent
}

func (*Container) node() {}
func (*Procedure) node() {}

// Catalog resolves test procedure templates. It returns nil for unknown ids.
type Catalog interface {
	TestProcedure(id int64) (*database.TestProcedure, error)
}

type rawInfo struct {
	Title       map[string]string `json:"title"`
	Description map[string]string `json:"description"`
}

type rawNode struct {
	Type     *string           `json:"type"`
	Info     *rawInfo          `json:"info"`
	Children []json.RawMessage `json:"children"`
	ID       *int64            `json:"id"`
}

// Parse validates structure for the given report language and resolves
// every procedure against catalog. An empty language skips the translation
// check and a nil catalog skips procedure resolution, which is how
// templates are checked when they are stored.
func Parse(structure []byte, language string, catalog Catalog) ([]*Container, error) {
	var roots []json.RawMessage
	if err := json.Unmarshal(structure, &roots); err != nil {
		return nil, invalid("", "structure must be a list of nodes")
	}
	if len(roots) == 0 {
		return nil, invalid("", "structure is empty")
	}

	p := parser{language: language, catalog: catalog}
	forest := make([]*Container, 0, len(roots))
	for i, raw := range roots {
		path := fmt.Sprintf("[%d]", i)
		n, err := p.node(path, raw)
		if err != nil {
			return nil, err
		}
		c, ok := n.(*Container)
		if !ok {
			return nil, invalid(path, "top-level nodes must be containers")
		}
		forest = append(forest, c)
	}
	return forest, nil
}

// CheckShape validates a template independently of any report language or
// procedure catalog.
func CheckShape(structure []byte) error {
	_, err := Parse(structure, "", nil)
	return err
}

type parser struct {
	language string
	catalog  Catalog
}

func (p *parser) node(path string, data json.RawMessage) (Node, error) {
	var raw rawNode
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, invalid(path, "node is not a valid object")
	}
	if raw.Type == nil {
		return nil, invalid(path, "missing type")
	}

	switch *raw.Type {
	case typeContainer:
		return p.container(path, &raw)
	case typeProcedure:
		return p.procedure(path, &raw)
	default:
		return nil, invalid(path, "unknown node type %q", *raw.Type)
	}
}

func (p *parser) container(path string, raw *rawNode) (*Container, error) {
	if raw.Info == nil || raw.Info.Title == nil || raw.Info.Description == nil {
		return nil, invalid(path, "container requires info.title and info.description")
	}
	c := &Container{}
	if p.language != "" {
		title, ok := raw.Info.Title[p.language]
		if !ok {
			return nil, invalid(path, "missing title for language %q", p.language)
		}
		description, ok := raw.Info.Description[p.language]
		if !ok {
			return nil, invalid(path, "missing description for language %q", p.language)
		}
		c.Title, c.Description = title, description
	}
	if len(raw.Children) == 0 {
		return nil, invalid(path, "container requires at least one child")
	}

	for i, child := range raw.Children {
		n, err := p.node(fmt.Sprintf("%s.children[%d]", path, i), child)
		if err != nil {
			return nil, err
		}
		c.Children = append(c.Children, n)
	}
	return c, nil
}

func (p *parser) procedure(path string, raw *rawNode) (*Procedure, error) {
	if raw.ID == nil {
		return nil, invalid(path, "procedure requires an id")
	}
	proc := &Procedure{TemplateID: *raw.ID}
	if p.catalog == nil {
		return proc, nil
	}

	tmpl, err := p.catalog.TestProcedure(*raw.ID)
	if err != nil {
		return nil, fmt.Errorf("resolve test procedure %d: %w", *raw.ID, err)
	}
	if tmpl == nil {
		return nil, invalid(path, "unknown test procedure %d", *raw.ID)
	}
	if p.language != "" {
		content, ok := tmpl.Content[p.language]
		if !ok {
			return nil, invalid(path, "test procedure %d has no %q content", *raw.ID, p.language)
		}
		if content.Title == "" {
			content.Title = tmpl.Name
		}
		proc.Content = content
	}
	return proc, nil
}
