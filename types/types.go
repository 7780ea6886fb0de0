package types

// ImageItem is one addressable image handed to the engine by a collaborator.
// The engine treats Path as an opaque stable identity; it is also the handle
// used to stat and decode the file on demand.
type ImageItem struct {
	Path string `json:"path"`
}

// Warning records a non-fatal per-item failure (decode error, vanished file)
// attributed to the item it belongs to.
type Warning struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// DuplicateGroup is one connected component of near-duplicate items,
// referencing items by their index in the input slice. Groups always have at
// least two members.
type DuplicateGroup struct {
	Items []int `json:"items"`
}

// Size returns the number of members in the group.
func (g DuplicateGroup) Size() int {
	return len(g.Items)
}

// DuplicateReport is the immutable result of one duplicate-detection run:
// groups sorted by descending size, plus the warnings accumulated while
// computing fingerprints.
type DuplicateReport struct {
	Groups   []DuplicateGroup `json:"groups"`
	Warnings []Warning        `json:"warnings"`
}
