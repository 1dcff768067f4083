// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

/*
Package pipeline wires loading, feature synthesis, post-processing, model
search and submission writing into two batch stages.

# Stages

Featurize:

 1. Load the raw tables; the label is split off the training target.
 2. Build independent train and test entity sets.
 3. Run deep feature synthesis on the train set and replay the resulting
    definitions on the test set.
 4. Replace unknown sentinels and unknown tokens with missing values.
 5. Reattach the label to the training matrix by key.
 6. Write both matrices and the feature definitions.

Train:

 1. Read the matrices back with the kinds recorded in the definitions.
 2. Run the cross-validated model search and write the leaderboard.
 3. Persist the leader, reload it and score the test matrix.
 4. Write the submission after checking its keys against the raw test file.

Run executes both stages under one run id. Every invocation is recorded in
the run registry and timed in the stage metrics.
*/
package pipeline
