package domain

// Clause is one node of the parsed contract tree.
type Clause struct {
	ID       string   `json:"id" yaml:"id"`
	Title    string   `json:"title,omitempty" yaml:"title,omitempty"`
	Text     string   `json:"text" yaml:"text"`
	Children []Clause `json:"children,omitempty" yaml:"children,omitempty"`
}

// Document is the clause tree produced by an external parser.
// The engine never interprets it; it is handed to skills as-is.
type Document struct {
	ID       string            `json:"id" yaml:"id"`
	Title    string            `json:"title,omitempty" yaml:"title,omitempty"`
	Clauses  []Clause          `json:"clauses" yaml:"clauses"`
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// ClauseRef locates a clause inside the tree together with its surroundings.
type ClauseRef struct {
	Clause   Clause
	Parent   *Clause
	Siblings []string // IDs of the other clauses sharing the same parent
}

// Walk visits every clause depth-first. Returning false stops the walk.
func (d *Document) Walk(fn func(c Clause, parent *Clause) bool) {
	if d == nil {
		return
	}
	var visit func(list []Clause, parent *Clause) bool
	visit = func(list []Clause, parent *Clause) bool {
		for i := range list {
			if !fn(list[i], parent) {
				return false
			}
			if !visit(list[i].Children, &list[i]) {
				return false
			}
		}
		return true
	}
	visit(d.Clauses, nil)
}

// FindClause looks up a clause by ID.
func (d *Document) FindClause(id string) (ClauseRef, bool) {
	var ref ClauseRef
	found := false
	d.Walk(func(c Clause, parent *Clause) bool {
		if c.ID != id {
			return true
		}
		ref.Clause = c
		ref.Parent = parent
		found = true
		return false
	})
	if !found {
		return ClauseRef{}, false
	}

	siblings := d.Clauses
	if ref.Parent != nil {
		siblings = ref.Parent.Children
	}
	for _, s := range siblings {
		if s.ID != id {
			ref.Siblings = append(ref.Siblings, s.ID)
		}
	}
	return ref, true
}

// ClauseText returns the text of a clause, or "" if it is not in the document.
func (d *Document) ClauseText(id string) string {
	ref, ok := d.FindClause(id)
	if !ok {
		return ""
	}
	return ref.Clause.Text
}
