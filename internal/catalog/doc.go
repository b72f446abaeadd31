// Package catalog fetches the remote game catalog.
//
// The catalog is a single JSON object whose keys are opaque entry ids and
// whose values describe one entry each:
//
//	{"g1": {"official_name": "Alpha", "description": "...", "image_url": "https://..."}}
//
// A fetch either yields the whole snapshot or an error; partial snapshots
// are never returned.
package catalog
