// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

/*
Package features implements deep feature synthesis over an entity set.

# Overview

Starting from a target entity, the synthesizer walks relationships outward
and stacks primitives into feature definitions:

  - identity: a variable of the entity itself
  - transform: a row-wise primitive on a feature of the same entity,
    e.g. MONTH(date_account_created), KEYWORD_COUNT(action_detail)
  - aggregation: a primitive collapsing a child feature over the child rows
    of each parent row, e.g. MEAN(sessions.secs_elapsed), optionally
    restricted by a where-clause: COUNT(sessions WHERE action_type = click)
  - direct: a parent feature copied onto each child row, e.g.
    buckets.population

Each step adds one to a feature's depth; MaxDepth bounds the result.
An entity already on the current path is never revisited, so cycles in the
relationship graph terminate.

# Replay

Definitions are symbolic. CalculateFeatureMatrix evaluates a definition
list against any schema-compatible entity set and yields the same columns in
the same order. Definitions (including primitive parameters) serialize to
JSON with SaveFeatures and LoadFeatures, so a test partition can be scored
in a separate process from the one that synthesized the training matrix.

# Missing values

An aggregation over a parent with no related child rows yields an Unknown
cell, kept distinct from Missing until post-processing. A parent with related
rows but no usable values gets 0 from counting primitives (count, sum,
num_unique, long_session_count) and Missing from statistics.

# Custom Primitives

  - keyword_count (transform, text): case-insensitive substring occurrences of
    a fixed keyword set, summed per row
  - long_session_count (aggregation, numeric): number of child values above a
    threshold, 3600 seconds by default; optionally inclusive of the threshold
*/
package features
