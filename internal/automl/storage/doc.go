// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

// Package storage persists trained models as versioned files.
//
// # Storage Format
//
// Each model version is one file:
//
//	filename: {name}_v{version}.gob.gz
//
//	structure (gob):
//	  - Metadata (ModelMetadata)
//	  - CompressedData (gzip of the gob-encoded model state)
//
// The SHA-256 checksum of the uncompressed state is recorded in the metadata
// and verified on every load.
//
// # Usage
//
//	store, err := storage.NewStore("artifacts/models")
//	if err != nil {
//	    return err
//	}
//	if err := store.Save(ctx, "leader", 0, state, meta); err != nil {
//	    return err
//	}
//
//	var restored automl.ModelState
//	meta, err := store.Load(ctx, "leader", 0, &restored)
//
// Version 0 means "next version" on Save and "latest version" on Load.
package storage
