// Package viewgen turns a container mapping into cells and partitions them
// into cell groups: sets of cells whose views depend on each other through
// shared extents or foreign key constraints between their tables.
//
// Cell groups are memoized per container mapping and configuration:
//
//	cache := viewgen.NewCache()
//	cfg, _ := viewgen.NewConfig()
//	out, err := cache.GetCellgroups(cm, cfg)
//	if err != nil {
//	    return err
//	}
//	for _, g := range out.CellGroups {
//	    fmt.Println(len(g.Cells))
//	}
package viewgen
