// Copyright 2026 The iMessage Exporter Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads exporter run configuration.
//
// Configuration comes from a single YAML file named by the
// IMESSAGE_EXPORTER_CONFIG environment variable or the --config flag.
// There is no discovery chain and no merging of multiple files: one
// file, loaded over defaults, then validated. Command line flags
// override individual fields after loading.
package config
