package common

import "fmt"

// TransformRequest is a declarative, not yet enacted file mutation.
// The concrete types are Extract, Remove, Replace and Convert.
type TransformRequest interface {
	fmt.Stringer
	transform()
}

// Extract unpacks Archive into Dest using Handler.
type Extract struct {
	Archive string
	Dest    string
	// Handler names a built-in format ("zip", "tar") or an external tool.
	Handler string
}

// Remove deletes Path recursively.
type Remove struct {
	Path string
}

// Replace makes Target a symlink to Source.
type Replace struct {
	Target string
	Source string
}

// Convert transcodes Source into Dest. Codec is a hint for the encoder.
type Convert struct {
	Source string
	Dest   string
	Codec  string
}

func (Extract) transform() {}
func (Remove) transform()  {}
func (Replace) transform() {}
func (Convert) transform() {}

func (r Extract) String() string {
	return fmt.Sprintf("extract %s -> %s [%s]", r.Archive, r.Dest, r.Handler)
}

func (r Remove) String() string { return "remove " + r.Path }

func (r Replace) String() string {
	return fmt.Sprintf("replace %s -> %s", r.Target, r.Source)
}

func (r Convert) String() string {
	return fmt.Sprintf("convert %s -> %s [%s]", r.Source, r.Dest, r.Codec)
}
