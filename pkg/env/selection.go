package env

// Selection holds the raw patterns of the three selection
// filters. A nil field means the variable is not set.
type Selection struct {
	File  *string `yaml:"file,omitempty" json:"file,omitempty"`
	Group *string `yaml:"group,omitempty" json:"group,omitempty"`
	Name  *string `yaml:"name,omitempty" json:"name,omitempty"`
}

// ReadSelection reads the selection variables through l.
func ReadSelection(l Loader) Selection {
	return Selection{
		File:  lookup(l, VarFile),
		Group: lookup(l, VarGroup),
		Name:  lookup(l, VarName),
	}
}

// Environ renders the set fields as KEY=value pairs suitable
// for a child process environment.
func (s Selection) Environ() []string {
	var out []string
	if s.File != nil {
		out = append(out, VarFile+"="+*s.File)
	}
	if s.Group != nil {
		out = append(out, VarGroup+"="+*s.Group)
	}
	if s.Name != nil {
		out = append(out, VarName+"="+*s.Name)
	}
	return out
}

func lookup(l Loader, key string) *string {
	v, ok := l.Lookup(key)
	if !ok {
		return nil
	}
	return &v
}
