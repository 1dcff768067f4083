// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

/*
Package automl searches multiclass classifiers for a feature matrix.

# Search

Train encodes the matrix once (Preprocessor), assigns rows to seeded folds
and walks a schedule of candidates: the default configuration of every
family first, then the remaining grid points of each family in seeded random
order, interleaved round-robin. Each candidate is scored on out-of-fold
predictions and refit on all rows.

The search stops when the candidates run out, MaxModels base models exist or
MaxRuntime elapses. A spent budget returns the models finished so far; a
search that finishes nothing fails with ErrNoModels.

# Families

  - glm: multinomial logistic regression with an L2 penalty
  - naive_bayes: Gaussian naive Bayes
  - drf: random forest (bootstrap rows, mtries inputs per split)
  - xrt: extremely randomized trees (random thresholds, no bootstrap)
  - stacked_ensemble: a GLM over the out-of-fold class probabilities of the
    base models, built as all_models and best_of_family

gbm, xgboost and deep_learning are recognized but not trainable; including
them is an error and excluding them is a no-op.

# Ranking

Every metric is lower-is-better: mean_per_class_error (default), logloss and
misclassification. Equal scores rank by model id, so the leaderboard is
stable for a fixed seed.

# Persistence

SaveModel and LoadModel round-trip a Model through the storage package. A
reloaded model scores identical rows identically.
*/
package automl
