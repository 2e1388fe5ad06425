package types

// KernelRef identifies a kernel as reported by the session service.
type KernelRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SessionRecord is the canonical, validated representation of a session
// as known to the server. Immutable snapshot; uniquely identified by ID
// within a server endpoint.
type SessionRecord struct {
	ID     string     `json:"id"`
	Path   string     `json:"path"`
	Type   string     `json:"type"`
	Name   string     `json:"name"`
	Kernel *KernelRef `json:"kernel"`
}

// SameKernel reports whether two kernel references describe the same
// kernel identity. Two nils match; a nil never matches a non-nil.
func SameKernel(a, b *KernelRef) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}

// CreateOptions describes a session to be created server-side.
type CreateOptions struct {
	Path       string
	Type       string
	Name       string
	KernelName string
	KernelID   string
}

// KernelPatch carries a requested kernel identity change. Either field
// may be omitted; the server resolves the rest.
type KernelPatch struct {
	ID   *string `json:"id,omitempty"`
	Name *string `json:"name,omitempty"`
}

// PatchBody is a partial session update. Nil fields are left untouched
// by the server.
type PatchBody struct {
	Path   *string      `json:"path,omitempty"`
	Type   *string      `json:"type,omitempty"`
	Name   *string      `json:"name,omitempty"`
	Kernel *KernelPatch `json:"kernel,omitempty"`
}
