// Package dbcollection keeps track of converted datasets and opens their
// containers.
//
// A Catalog maps every dataset to its data directory and to the container
// of each of its tasks; it is stored as a small JSON file. A Registry opens
// catalog entries as loader.DataLoader handles and keeps them until they
// are closed:
//
//	catalog, err := dbcollection.LoadCatalog(filepath.Join(home, ".dbcollection.json"))
//	if err != nil {
//		return err
//	}
//	reg := dbcollection.NewRegistry(catalog)
//	defer reg.Clear()
//
//	mnist, err := reg.Open(ctx, "mnist", "classification")
//
// Containers are written by package convert and read by package loader;
// package zarr holds the storage layer both share.
package dbcollection
