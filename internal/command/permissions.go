package command

import "strings"

// PermissionSet is a snapshot of the permission names held by a user or the
// bot in one channel. Names are upper-cased, e.g. "MANAGE_MESSAGES".
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from permission names.
func NewPermissionSet(names ...string) PermissionSet {
	ps := make(PermissionSet, len(names))
	for _, n := range names {
		ps[normalizePermission(n)] = struct{}{}
	}
	return ps
}

func (ps PermissionSet) Has(name string) bool {
	_, ok := ps[normalizePermission(name)]
	return ok
}

// Missing returns the required names not present in the set, in the order
// they were required.
func (ps PermissionSet) Missing(required []string) []string {
	var missing []string
	for _, r := range required {
		if !ps.Has(r) {
			missing = append(missing, r)
		}
	}
	return missing
}

func normalizePermission(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
