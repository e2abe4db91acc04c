package metadata

// ItemCollection is the set of global types of one model, conceptual or
// storage. It answers hierarchy queries used by mapping resolution.
type ItemCollection struct {
	types  []EdmType
	byName map[string]EdmType
}

// NewItemCollection returns a collection holding the given types.
func NewItemCollection(types ...EdmType) *ItemCollection {
	c := &ItemCollection{byName: make(map[string]EdmType)}
	for _, t := range types {
		c.Add(t)
	}
	return c
}

// Add registers t. A type registered twice under the same name keeps the
// first registration.
func (c *ItemCollection) Add(t EdmType) {
	if c.byName == nil {
		c.byName = make(map[string]EdmType)
	}
	if _, ok := c.byName[t.FullName()]; ok {
		return
	}
	c.byName[t.FullName()] = t
	c.types = append(c.types, t)
}

// Type returns the type with the given full name, or nil.
func (c *ItemCollection) Type(name string) EdmType {
	return c.byName[name]
}

// EntityType returns the entity type with the given full name, or nil.
func (c *ItemCollection) EntityType(name string) *EntityType {
	t, _ := c.byName[name].(*EntityType)
	return t
}

// ComplexType returns the complex type with the given full name, or nil.
func (c *ItemCollection) ComplexType(name string) *ComplexType {
	t, _ := c.byName[name].(*ComplexType)
	return t
}

// Types returns the registered types in registration order.
func (c *ItemCollection) Types() []EdmType {
	return c.types
}

// TypeAndSubtypes returns t followed by every registered type deriving from
// it, in registration order. Abstract entity types are skipped unless
// includeAbstract is set.
func (c *ItemCollection) TypeAndSubtypes(t EdmType, includeAbstract bool) []EdmType {
	var out []EdmType
	if includeAbstract || !isAbstract(t) {
		out = append(out, t)
	}
	for _, d := range c.types {
		if d == t || !IsAssignableFrom(t, d) {
			continue
		}
		if includeAbstract || !isAbstract(d) {
			out = append(out, d)
		}
	}
	return out
}

func isAbstract(t EdmType) bool {
	e, ok := t.(*EntityType)
	return ok && e.Abstract
}
