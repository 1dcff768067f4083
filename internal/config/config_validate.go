// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// singleton validator instance; caches struct metadata across calls.
var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks struct-level constraints and cross-field consistency.
func (c *Config) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		return translateValidationError(err)
	}

	validators := []func() error{
		c.validateSchemaTables,
		c.validateRelationships,
		c.validateInterestingValues,
		c.validateFamilies,
	}

	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

// translateValidationError flattens validator errors into a single message
// naming each offending field.
func translateValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// validateSchemaTables checks table names are unique and the target table is
// declared with a test partition.
func (c *Config) validateSchemaTables() error {
	seen := make(map[string]struct{}, len(c.Schema.Tables))
	for _, t := range c.Schema.Tables {
		if _, dup := seen[t.Name]; dup {
			return fmt.Errorf("schema table %q declared more than once", t.Name)
		}
		seen[t.Name] = struct{}{}
	}

	target, ok := c.Schema.Table(c.Schema.Target)
	if !ok {
		return fmt.Errorf("schema target %q is not a declared table", c.Schema.Target)
	}
	if target.TestFile == "" {
		return fmt.Errorf("schema target %q requires test_file", target.Name)
	}
	if target.MakeIndex {
		return fmt.Errorf("schema target %q needs a natural key; make_index is not allowed", target.Name)
	}
	if c.Schema.Label == target.Index {
		return fmt.Errorf("schema label %q cannot be the target index", c.Schema.Label)
	}
	return nil
}

// validateRelationships checks every relationship names declared tables and
// that the parent column is the parent's key.
func (c *Config) validateRelationships() error {
	for _, r := range c.Schema.Relationships {
		parent, ok := c.Schema.Table(r.ParentTable)
		if !ok {
			return fmt.Errorf("relationship parent table %q is not declared", r.ParentTable)
		}
		if _, ok := c.Schema.Table(r.ChildTable); !ok {
			return fmt.Errorf("relationship child table %q is not declared", r.ChildTable)
		}
		if r.ParentTable == r.ChildTable {
			return fmt.Errorf("relationship %s.%s -> %s.%s is self-referencing",
				r.ParentTable, r.ParentColumn, r.ChildTable, r.ChildColumn)
		}
		if parent.Index != r.ParentColumn {
			return fmt.Errorf("relationship parent column %s.%s must be the table key %q",
				r.ParentTable, r.ParentColumn, parent.Index)
		}
	}
	return nil
}

// validateInterestingValues checks where-clause tables exist.
func (c *Config) validateInterestingValues() error {
	for _, iv := range c.Features.InterestingValues {
		if _, ok := c.Schema.Table(iv.Table); !ok {
			return fmt.Errorf("interesting values table %q is not declared", iv.Table)
		}
	}
	return nil
}

// validateFamilies rejects a family that is both included and excluded.
func (c *Config) validateFamilies() error {
	excluded := make(map[string]struct{}, len(c.AutoML.ExcludeFamilies))
	for _, f := range c.AutoML.ExcludeFamilies {
		excluded[strings.ToLower(f)] = struct{}{}
	}
	for _, f := range c.AutoML.IncludeFamilies {
		if _, ok := excluded[strings.ToLower(f)]; ok {
			return fmt.Errorf("automl family %q is both included and excluded", f)
		}
	}
	return nil
}
