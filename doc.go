// Package assetcache is a generation-keyed, cache-first asset cache.
//
// A Manager owns one cache generation identifier and one asset manifest and
// drives three lifecycle operations against an injected store.Store:
//
//   - Install: fetch every manifest URL and write them into the generation,
//     all or nothing.
//   - Activate: delete every generation other than the current one. Deletion
//     failures are reported, never fatal.
//   - Resolve: answer GET requests from the current generation, forwarding
//     misses to the network without writing them back.
//
// Rolling out new assets means constructing a Manager with a new generation,
// installing it while the old one keeps serving, then activating it:
//
//	next, _ := assetcache.New(assetcache.Options{Generation: "site-v2", Store: st, Manifest: urls})
//	if err := next.Install(ctx); err != nil {
//		return err // site-v1 is untouched and still serving
//	}
//	res, _ := next.Activate(ctx) // site-v1 is gone
//
// Storage backends live in store (memory, provider-backed) and store/sqlite.
package assetcache
