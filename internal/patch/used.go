package patch

import "github.com/phobologic/pd4web/internal/model"

type objectKey struct{ library, name string }

// UsedObjects is the ordered set of external classes a project instantiates.
// It only grows.
type UsedObjects struct {
	order []model.UsedObject
	index map[objectKey]int
}

// NewUsedObjects returns an empty set.
func NewUsedObjects() *UsedObjects {
	return &UsedObjects{index: make(map[objectKey]int)}
}

// Add records (library, name). It reports false when the pair was already
// present, in which case the first setup function is kept.
func (u *UsedObjects) Add(library, name, setup string) bool {
	key := objectKey{library, name}
	if _, ok := u.index[key]; ok {
		return false
	}
	u.index[key] = len(u.order)
	u.order = append(u.order, model.UsedObject{
		Library:       library,
		Name:          name,
		SetupFunction: setup,
	})
	return true
}

// Len returns the number of distinct objects.
func (u *UsedObjects) Len() int {
	return len(u.order)
}

// List returns the objects in first-use order.
func (u *UsedObjects) List() []model.UsedObject {
	out := make([]model.UsedObject, len(u.order))
	copy(out, u.order)
	return out
}
