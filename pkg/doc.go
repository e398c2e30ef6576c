// Package pkg provides the core libraries for traceviz relationship
// diagrams.
//
// # Overview
//
// Traceviz reads declarations of traceable entities (requirements, design
// elements, tests) and renders the relationship graph between them. The
// pkg directory is organized along the data flow:
//
//	trace file (JSON)
//	         ↓
//	[trace]    registry: entities, relationship types, linking
//	         ↓
//	[relspec]  parsed relationship specs ("parents:2,used-in")
//	         ↓
//	[walk]     bounded cycle-safe traversal from start tags
//	         ↓
//	[render/dot] DOT serialization and SVG/PNG rasterization
//
// [document] orchestrates directives embedded in authored documents,
// [listing] and [filter] produce filtered entity listings, [pipeline]
// ties the stages together with artifact caching ([cache]), and [styles]
// maps entity categories to rendering attributes. [errors] carries coded
// errors across package boundaries and [buildinfo] holds version metadata.
package pkg
