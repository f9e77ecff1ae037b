package domain

// Site is one logical virtual host with up to two log files.
// An empty path means that kind of file is never tailed for the site.
type Site struct {
	Label      string `json:"label" mapstructure:"label"`
	AccessPath string `json:"access,omitempty" mapstructure:"access"`
	ErrorPath  string `json:"error,omitempty" mapstructure:"error"`
}

// Sources returns the tailable files of the site, access first
func (s Site) Sources() []Source {
	var out []Source
	if s.AccessPath != "" {
		out = append(out, Source{Label: s.Label, Path: s.AccessPath, Kind: SourceAccess})
	}
	if s.ErrorPath != "" {
		out = append(out, Source{Label: s.Label, Path: s.ErrorPath, Kind: SourceError})
	}
	return out
}

// Path returns the configured path for kind, or "" when absent
func (s Site) Path(kind SourceKind) string {
	if kind == SourceError {
		return s.ErrorPath
	}
	return s.AccessPath
}

// Source identifies one monitored file. It is immutable after startup.
type Source struct {
	Label string     `json:"label"`
	Path  string     `json:"path"`
	Kind  SourceKind `json:"kind"`
}
