package mode

type Mode int

const (
	Unknown Mode = iota
	// Node mode joins the mesh
	Node
	// Keygen mode prints a new node identity
	Keygen
	// Version used to lookup version
	Version
)
