package rest

import (
	"github.com/bytedance/sonic"

	"github.com/divyansshhh/jupyterlab/internal/shared/types"
)

// wireKernel mirrors the kernel sub-object on the wire.
type wireKernel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// wireSession mirrors a session payload on the wire. Older servers
// report the path under a notebook sub-object instead of path.
type wireSession struct {
	ID       string      `json:"id,omitempty"`
	Path     string      `json:"path,omitempty"`
	Type     string      `json:"type,omitempty"`
	Name     string      `json:"name,omitempty"`
	Kernel   *wireKernel `json:"kernel,omitempty"`
	Notebook *struct {
		Path string `json:"path"`
	} `json:"notebook,omitempty"`
}

// decodeRecord decodes and validates a single session payload.
func decodeRecord(data []byte) (types.SessionRecord, error) {
	var w wireSession
	if err := sonic.Unmarshal(data, &w); err != nil {
		return types.SessionRecord{}, &types.ValidationError{Field: "session", Reason: "is not a JSON object"}
	}
	return normalize(w)
}

// normalize validates a wire payload and converts it to the canonical
// record form, applying the legacy notebook.path fallback.
func normalize(w wireSession) (types.SessionRecord, error) {
	if w.ID == "" {
		return types.SessionRecord{}, &types.ValidationError{Field: "id", Reason: "is missing or empty"}
	}

	path := w.Path
	if path == "" && w.Notebook != nil {
		path = w.Notebook.Path
	}
	if path == "" {
		return types.SessionRecord{}, &types.ValidationError{Field: "path", Reason: "is missing or empty"}
	}

	rec := types.SessionRecord{
		ID:   w.ID,
		Path: path,
		Type: w.Type,
		Name: w.Name,
	}
	if w.Kernel != nil {
		if w.Kernel.ID == "" {
			return types.SessionRecord{}, &types.ValidationError{Field: "kernel.id", Reason: "is missing or empty"}
		}
		rec.Kernel = &types.KernelRef{ID: w.Kernel.ID, Name: w.Kernel.Name}
	}
	return rec, nil
}
