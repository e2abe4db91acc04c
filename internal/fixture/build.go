package fixture

import (
	"fmt"

	"github.com/syssam/csmap/mapping"
	"github.com/syssam/csmap/metadata"
)

type builder struct {
	file     string
	ns       string
	entities map[string]*metadata.EntityType
	complex  map[string]*metadata.ComplexType
	cm       *mapping.ContainerMapping
}

// Build constructs the container mapping a descriptor declares. The result
// is not frozen.
func Build(d *Descriptor, file string) (*mapping.ContainerMapping, error) {
	b := &builder{
		file:     file,
		ns:       d.Namespace,
		entities: make(map[string]*metadata.EntityType),
		complex:  make(map[string]*metadata.ComplexType),
	}
	if b.ns == "" {
		b.ns = d.Name
	}
	items, err := b.types(d.Types)
	if err != nil {
		return nil, err
	}
	conceptual := metadata.NewEntityContainer(d.Name)
	for _, s := range d.Sets {
		et, err := b.entity(s.Type)
		if err != nil {
			return nil, fmt.Errorf("%s: entity set %s: %w", file, s.Name, err)
		}
		if err := conceptual.AddSet(&metadata.EntitySet{Name: s.Name, EntityType: et}); err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
	}
	for _, a := range d.Associations {
		set, err := b.association(a, conceptual)
		if err != nil {
			return nil, fmt.Errorf("%s: association %s: %w", file, a.Name, err)
		}
		items.Add(set.AssociationType)
		if err := conceptual.AddSet(set); err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
	}
	storage, err := b.storage(d.Storage)
	if err != nil {
		return nil, err
	}

	b.cm = mapping.NewContainerMapping(conceptual, storage, items)
	b.cm.Location = mapping.SourceLocation{File: file, Line: 1, Column: 1}
	if d.GenerateUpdateViews != nil {
		b.cm.GenerateUpdateViews = *d.GenerateUpdateViews
	}
	for _, sm := range d.Mappings {
		if err := b.setMapping(sm); err != nil {
			return nil, fmt.Errorf("%s: %w", sm.Pos.location(file), err)
		}
	}
	var opts []mapping.KBOption
	switch d.ColumnNaming {
	case "", "member":
	case "snake":
		opts = append(opts, mapping.WithColumnNamer(mapping.SnakeCaseColumns))
	default:
		return nil, fmt.Errorf("%s: unknown column naming %q", file, d.ColumnNaming)
	}
	for _, fi := range d.FunctionImports {
		if err := b.functionImport(fi, opts); err != nil {
			return nil, fmt.Errorf("%s: function import %s: %w", fi.Pos.location(file), fi.Name, err)
		}
	}
	return b.cm, nil
}

func (b *builder) types(descs []TypeDesc) (*metadata.ItemCollection, error) {
	items := metadata.NewItemCollection()
	for _, d := range descs {
		if _, ok := b.entities[d.Name]; ok {
			return nil, fmt.Errorf("%s: duplicate type %s", b.file, d.Name)
		}
		if _, ok := b.complex[d.Name]; ok {
			return nil, fmt.Errorf("%s: duplicate type %s", b.file, d.Name)
		}
		if d.Complex {
			b.complex[d.Name] = &metadata.ComplexType{Name: d.Name, Namespace: b.ns}
		} else {
			b.entities[d.Name] = &metadata.EntityType{Name: d.Name, Namespace: b.ns, Abstract: d.Abstract, KeyMembers: d.Key}
		}
	}
	for _, d := range descs {
		var props []*metadata.EdmProperty
		for _, p := range d.Properties {
			t, err := b.propertyType(p.Type)
			if err != nil {
				return nil, fmt.Errorf("%s: property %s.%s: %w", b.file, d.Name, p.Name, err)
			}
			props = append(props, metadata.NewProperty(p.Name, t, p.Nullable))
		}
		if ct, ok := b.complex[d.Name]; ok {
			ct.Properties = props
			if d.Base != "" {
				if ct.Base, ok = b.complex[d.Base]; !ok {
					return nil, fmt.Errorf("%s: type %s: unknown complex base type %q", b.file, d.Name, d.Base)
				}
			}
			items.Add(ct)
			continue
		}
		et := b.entities[d.Name]
		et.Properties = props
		if d.Base != "" {
			base, err := b.entity(d.Base)
			if err != nil {
				return nil, fmt.Errorf("%s: type %s: %w", b.file, d.Name, err)
			}
			et.Base = base
		}
		items.Add(et)
	}
	return items, nil
}

func (b *builder) propertyType(name string) (metadata.EdmType, error) {
	if p := metadata.PrimitiveByName(name); p != nil {
		return p, nil
	}
	if ct, ok := b.complex[name]; ok {
		return ct, nil
	}
	return nil, fmt.Errorf("unknown type %q", name)
}

func (b *builder) entity(name string) (*metadata.EntityType, error) {
	if et, ok := b.entities[name]; ok {
		return et, nil
	}
	return nil, fmt.Errorf("unknown entity type %q", name)
}

func (b *builder) complexType(name string) (*metadata.ComplexType, error) {
	if ct, ok := b.complex[name]; ok {
		return ct, nil
	}
	return nil, fmt.Errorf("unknown complex type %q", name)
}

func (b *builder) association(d AssociationDesc, conceptual *metadata.EntityContainer) (*metadata.AssociationSet, error) {
	at := &metadata.AssociationType{Name: d.Name, Namespace: b.ns}
	set := &metadata.AssociationSet{Name: d.Name, AssociationType: at}
	for _, e := range d.Ends {
		et, err := b.entity(e.Type)
		if err != nil {
			return nil, fmt.Errorf("end %s: %w", e.Role, err)
		}
		m, err := parseMultiplicity(e.Multiplicity)
		if err != nil {
			return nil, fmt.Errorf("end %s: %w", e.Role, err)
		}
		end := &metadata.AssociationEndMember{Name: e.Role, EntityType: et, Multiplicity: m}
		at.Ends = append(at.Ends, end)
		es := conceptual.EntitySet(e.Set)
		if es == nil {
			return nil, fmt.Errorf("end %s: unknown entity set %q", e.Role, e.Set)
		}
		set.Ends = append(set.Ends, &metadata.AssociationSetEnd{Role: end, EntitySet: es})
	}
	return set, nil
}

func parseMultiplicity(s string) (metadata.Multiplicity, error) {
	switch s {
	case "1":
		return metadata.One, nil
	case "0..1":
		return metadata.ZeroOrOne, nil
	case "*", "":
		return metadata.Many, nil
	default:
		return 0, fmt.Errorf("invalid multiplicity %q", s)
	}
}

func (b *builder) storage(d StorageDesc) (*metadata.EntityContainer, error) {
	name := d.Name
	if name == "" {
		name = "Store"
	}
	ns := d.Namespace
	if ns == "" {
		ns = name
	}
	c := metadata.NewEntityContainer(name)
	for _, t := range d.Tables {
		et := &metadata.EntityType{Name: t.Name, Namespace: ns, KeyMembers: t.Key}
		for _, col := range t.Columns {
			p := metadata.PrimitiveByName(col.Type)
			if p == nil {
				return nil, fmt.Errorf("%s: column %s.%s: unknown type %q", b.file, t.Name, col.Name, col.Type)
			}
			et.Properties = append(et.Properties, metadata.NewProperty(col.Name, p, col.Nullable))
		}
		if err := c.AddSet(&metadata.EntitySet{Name: t.Name, EntityType: et, Schema: t.Schema}); err != nil {
			return nil, fmt.Errorf("%s: %w", b.file, err)
		}
	}
	for _, t := range d.Tables {
		for _, fk := range t.ForeignKeys {
			set, err := foreignKey(fk, c.EntitySet(t.Name), c.EntitySet(fk.References), ns)
			if err != nil {
				return nil, fmt.Errorf("%s: table %s: %w", b.file, t.Name, err)
			}
			if err := c.AddSet(set); err != nil {
				return nil, fmt.Errorf("%s: %w", b.file, err)
			}
		}
	}
	return c, nil
}

// foreignKey declares fk as an association from the referenced (parent)
// table to the referencing (child) table.
func foreignKey(fk ForeignKeyDesc, child, parent *metadata.EntitySet, ns string) (*metadata.AssociationSet, error) {
	if parent == nil {
		return nil, fmt.Errorf("foreign key %s: unknown table %q", fk.Name, fk.References)
	}
	if len(fk.Columns) != len(fk.RefColumns) {
		return nil, fmt.Errorf("foreign key %s: %d columns reference %d columns", fk.Name, len(fk.Columns), len(fk.RefColumns))
	}
	name := fk.Name
	if name == "" {
		name = "fk_" + child.Name + "_" + parent.Name
	}
	parentEnd := &metadata.AssociationEndMember{Name: parent.Name, EntityType: parent.EntityType, Multiplicity: metadata.One}
	childEnd := &metadata.AssociationEndMember{Name: child.Name, EntityType: child.EntityType, Multiplicity: metadata.Many}
	if childEnd.Name == parentEnd.Name {
		childEnd.Name += "1"
	}
	rc := &metadata.ReferentialConstraint{FromRole: parentEnd, ToRole: childEnd}
	for i, col := range fk.Columns {
		from, to := parent.EntityType.Property(fk.RefColumns[i]), child.EntityType.Property(col)
		if from == nil || to == nil {
			return nil, fmt.Errorf("foreign key %s: unknown column %s.%s or %s.%s", name, child.Name, col, parent.Name, fk.RefColumns[i])
		}
		if to.Nullable {
			parentEnd.Multiplicity = metadata.ZeroOrOne
		}
		rc.FromProperties = append(rc.FromProperties, from)
		rc.ToProperties = append(rc.ToProperties, to)
	}
	return &metadata.AssociationSet{
		Name: name,
		AssociationType: &metadata.AssociationType{
			Name:        name,
			Namespace:   ns,
			Ends:        []*metadata.AssociationEndMember{parentEnd, childEnd},
			Constraints: []*metadata.ReferentialConstraint{rc},
		},
		Ends: []*metadata.AssociationSetEnd{
			{Role: parentEnd, EntitySet: parent},
			{Role: childEnd, EntitySet: child},
		},
	}, nil
}

func (b *builder) setMapping(d SetMappingDesc) error {
	loc := d.Pos.location(b.file)
	switch set := b.cm.Conceptual.Set(d.Set).(type) {
	case *metadata.EntitySet:
		sm := mapping.NewEntitySetMapping(set)
		sm.Location = loc
		for _, td := range d.TypeMappings {
			tm, err := b.entityTypeMapping(td)
			if err != nil {
				return err
			}
			if err := sm.AddTypeMapping(tm); err != nil {
				return err
			}
		}
		if d.QueryView != "" {
			if err := sm.SetQueryView(d.QueryView); err != nil {
				return err
			}
		}
		return b.cm.AddSetMapping(sm)
	case *metadata.AssociationSet:
		var table *metadata.EntitySet
		if d.Table != "" {
			if table = b.cm.Storage.EntitySet(d.Table); table == nil {
				return fmt.Errorf("association set %s: unknown table %q", d.Set, d.Table)
			}
		}
		sm := mapping.NewAssociationSetMapping(set, table)
		sm.Location = loc
		for _, td := range d.TypeMappings {
			tm := mapping.NewAssociationTypeMapping(set.AssociationType)
			tm.Location = td.Pos.location(b.file)
			for _, fd := range td.Fragments {
				f, err := b.fragment(fd, nil, set.AssociationType)
				if err != nil {
					return err
				}
				if err := tm.AddFragment(f); err != nil {
					return err
				}
			}
			if err := sm.AddTypeMapping(tm); err != nil {
				return err
			}
		}
		if d.QueryView != "" {
			if err := sm.SetQueryView(d.QueryView); err != nil {
				return err
			}
		}
		return b.cm.AddSetMapping(sm)
	default:
		return fmt.Errorf("unknown set %q", d.Set)
	}
}

func (b *builder) entityTypeMapping(d TypeMappingDesc) (*mapping.EntityTypeMapping, error) {
	tm := mapping.NewEntityTypeMapping()
	tm.Location = d.Pos.location(b.file)
	var owners []*metadata.EntityType
	for _, name := range d.Types {
		et, err := b.entity(name)
		if err != nil {
			return nil, err
		}
		if err := tm.AddType(et); err != nil {
			return nil, err
		}
		owners = append(owners, et)
	}
	for _, name := range d.IsOf {
		et, err := b.entity(name)
		if err != nil {
			return nil, err
		}
		if err := tm.AddIsOfType(et); err != nil {
			return nil, err
		}
		owners = append(owners, et)
	}
	for _, fd := range d.Fragments {
		f, err := b.fragment(fd, owners, nil)
		if err != nil {
			return nil, err
		}
		if err := tm.AddFragment(f); err != nil {
			return nil, err
		}
	}
	return tm, nil
}

// fragment builds a fragment mapping members of owners, or the ends of
// association.
func (b *builder) fragment(d FragmentDesc, owners []*metadata.EntityType, association *metadata.AssociationType) (*mapping.MappingFragment, error) {
	table := b.cm.Storage.EntitySet(d.Table)
	if table == nil {
		return nil, fmt.Errorf("%s: unknown table %q", d.Pos.location(b.file), d.Table)
	}
	f := mapping.NewMappingFragment(table)
	f.IsSQueryDistinct = d.Distinct
	f.Location = d.Pos.location(b.file)
	lookup := func(name string) *metadata.EdmProperty {
		for _, et := range owners {
			if p := et.Property(name); p != nil {
				return p
			}
		}
		return nil
	}
	for _, pd := range d.Properties {
		if pd.End != "" {
			if association == nil {
				return nil, fmt.Errorf("%s: end mapping %s outside an association set", f.Location, pd.End)
			}
			end := association.End(pd.End)
			if end == nil {
				return nil, fmt.Errorf("%s: unknown end %q", f.Location, pd.End)
			}
			em := mapping.NewEndPropertyMapping(end)
			for _, kd := range pd.Properties {
				sp, err := b.scalar(kd, end.EntityType.Property, table)
				if err != nil {
					return nil, fmt.Errorf("%s: end %s: %w", f.Location, pd.End, err)
				}
				if err := em.AddProperty(sp); err != nil {
					return nil, err
				}
			}
			if err := f.AddProperty(em); err != nil {
				return nil, err
			}
			continue
		}
		pm, err := b.propertyMapping(pd, lookup, table)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Location, err)
		}
		if err := f.AddProperty(pm); err != nil {
			return nil, err
		}
	}
	for _, cd := range d.Conditions {
		c, err := b.condition(cd, lookup, table)
		if err != nil {
			return nil, err
		}
		if err := f.AddConditionProperty(c, nil); err != nil {
			return nil, fmt.Errorf("%s: %w", c.Location, err)
		}
	}
	return f, nil
}

func (b *builder) scalar(d PropertyMappingDesc, lookup func(string) *metadata.EdmProperty, table *metadata.EntitySet) (*mapping.ScalarPropertyMapping, error) {
	p := lookup(d.Name)
	if p == nil {
		return nil, fmt.Errorf("unknown property %q", d.Name)
	}
	col := table.EntityType.Property(d.Column)
	if col == nil {
		return nil, fmt.Errorf("unknown column %s.%s", table.Name, d.Column)
	}
	return mapping.NewScalarPropertyMapping(p, col), nil
}

func (b *builder) propertyMapping(d PropertyMappingDesc, lookup func(string) *metadata.EdmProperty, table *metadata.EntitySet) (mapping.PropertyMapping, error) {
	if len(d.Complex) == 0 {
		return b.scalar(d, lookup, table)
	}
	p := lookup(d.Name)
	if p == nil {
		return nil, fmt.Errorf("unknown property %q", d.Name)
	}
	declared, ok := p.Type().(*metadata.ComplexType)
	if !ok {
		return nil, fmt.Errorf("property %s is not complex", d.Name)
	}
	cpm := mapping.NewComplexPropertyMapping(p)
	for _, cd := range d.Complex {
		ctm := mapping.NewComplexTypeMapping()
		ctm.Location = cd.Pos.location(b.file)
		owners := []*metadata.ComplexType{}
		for _, name := range cd.Types {
			ct, err := b.complexType(name)
			if err != nil {
				return nil, err
			}
			if err := ctm.AddType(ct); err != nil {
				return nil, err
			}
			owners = append(owners, ct)
		}
		for _, name := range cd.IsOf {
			ct, err := b.complexType(name)
			if err != nil {
				return nil, err
			}
			if err := ctm.AddIsOfType(ct); err != nil {
				return nil, err
			}
			owners = append(owners, ct)
		}
		if len(owners) == 0 {
			if err := ctm.AddType(declared); err != nil {
				return nil, err
			}
			owners = append(owners, declared)
		}
		nested := func(name string) *metadata.EdmProperty {
			for _, ct := range owners {
				if p := complexProperty(ct, name); p != nil {
					return p
				}
			}
			return nil
		}
		for _, pd := range cd.Properties {
			pm, err := b.propertyMapping(pd, nested, table)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", d.Name, err)
			}
			if err := ctm.AddProperty(pm); err != nil {
				return nil, err
			}
		}
		for _, c := range cd.Conditions {
			cond, err := b.condition(c, nested, table)
			if err != nil {
				return nil, err
			}
			if err := ctm.AddConditionProperty(cond, nil); err != nil {
				return nil, fmt.Errorf("%s: %w", cond.Location, err)
			}
		}
		if err := cpm.AddTypeMapping(ctm); err != nil {
			return nil, err
		}
	}
	return cpm, nil
}

func complexProperty(t *metadata.ComplexType, name string) *metadata.EdmProperty {
	for c := t; c != nil; c = c.Base {
		for _, p := range c.Properties {
			if p.Name == name {
				return p
			}
		}
	}
	return nil
}

func (b *builder) condition(d ConditionDesc, lookup func(string) *metadata.EdmProperty, table *metadata.EntitySet) (*mapping.ConditionPropertyMapping, error) {
	loc := d.Pos.location(b.file)
	var property, column *metadata.EdmProperty
	switch {
	case d.Property != "" && d.Column != "":
		return nil, fmt.Errorf("%s: condition names both property %s and column %s", loc, d.Property, d.Column)
	case d.Property != "":
		if property = lookup(d.Property); property == nil {
			return nil, fmt.Errorf("%s: unknown property %q", loc, d.Property)
		}
	case d.Column != "":
		if column = table.EntityType.Property(d.Column); column == nil {
			return nil, fmt.Errorf("%s: unknown column %s.%s", loc, table.Name, d.Column)
		}
	default:
		return nil, fmt.Errorf("%s: condition names no member", loc)
	}
	var c *mapping.ConditionPropertyMapping
	if d.IsNull != nil {
		c = mapping.NewIsNullCondition(property, column, *d.IsNull)
	} else {
		c = mapping.NewValueCondition(property, column, d.Value)
	}
	c.Location = loc
	return c, nil
}

func (b *builder) functionImport(d FunctionImportDesc, opts []mapping.KBOption) error {
	fn := &metadata.EdmFunction{Name: d.Name, Namespace: b.ns}
	for _, r := range d.Results {
		t, err := b.resultType(r.Returns)
		if err != nil {
			return err
		}
		fn.ReturnParameters = append(fn.ReturnParameters, &metadata.FunctionParameter{
			TypeUsage: metadata.Usage(&metadata.CollectionType{Element: metadata.Usage(t)}),
		})
		var es *metadata.EntitySet
		if r.Set != "" {
			if es = b.cm.Conceptual.EntitySet(r.Set); es == nil {
				return fmt.Errorf("unknown entity set %q", r.Set)
			}
		}
		fn.EntitySets = append(fn.EntitySets, es)
	}
	b.cm.Conceptual.AddFunctionImport(fn)
	target := &metadata.EdmFunction{Name: d.Target, Namespace: b.cm.Storage.Name}
	fim := mapping.NewFunctionImportMapping(fn, target, opts...)
	fim.Location = d.Pos.location(b.file)
	for _, r := range d.Results {
		var mappings []mapping.FunctionImportStructuralTypeMapping
		for _, md := range r.Mappings {
			m, err := b.resultMapping(md)
			if err != nil {
				return err
			}
			mappings = append(mappings, m)
		}
		if err := fim.AddResultMapping(mappings...); err != nil {
			return err
		}
	}
	return b.cm.AddFunctionImportMapping(fim)
}

func (b *builder) resultType(name string) (metadata.EdmType, error) {
	if et, ok := b.entities[name]; ok {
		return et, nil
	}
	return b.propertyType(name)
}

func (b *builder) resultMapping(d ResultMappingDesc) (mapping.FunctionImportStructuralTypeMapping, error) {
	loc := d.Pos.location(b.file)
	var renames []mapping.ColumnRename
	for _, r := range d.Renames {
		renames = append(renames, mapping.ColumnRename{Member: r.Member, Column: r.Column, Location: r.Pos.location(b.file)})
	}
	if d.Complex != "" {
		ct, err := b.complexType(d.Complex)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", loc, err)
		}
		m := mapping.NewFunctionImportComplexTypeMapping(ct, renames...)
		m.Location = loc
		return m, nil
	}
	var types, isOf []*metadata.EntityType
	for _, name := range d.Types {
		et, err := b.entity(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", loc, err)
		}
		types = append(types, et)
	}
	for _, name := range d.IsOf {
		et, err := b.entity(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", loc, err)
		}
		isOf = append(isOf, et)
	}
	m := mapping.NewFunctionImportEntityTypeMapping(types, isOf, renames...)
	m.Location = loc
	for _, cd := range d.Conditions {
		if cd.Column == "" {
			return nil, fmt.Errorf("%s: function import condition names no column", cd.Pos.location(b.file))
		}
		var c mapping.FunctionImportCondition
		if cd.IsNull != nil {
			c = mapping.ConditionIsNull{Column: cd.Column, IsNull: *cd.IsNull}
		} else {
			c = mapping.NewConditionValue(cd.Column, cd.Value)
		}
		if err := m.AddCondition(c, nil); err != nil {
			return nil, fmt.Errorf("%s: %w", cd.Pos.location(b.file), err)
		}
	}
	return m, nil
}
