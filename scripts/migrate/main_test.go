package main

import (
	"regexp"
	"strings"
	"testing"
)

var createTablePattern = regexp.MustCompile(`(?s)CREATE TABLE IF NOT EXISTS (\w+) \((.*)\)`)

// tableColumns extracts column names from the CREATE TABLE statements.
func tableColumns(t *testing.T) map[string]map[string]bool {
	t.Helper()
	tables := map[string]map[string]bool{}
	for _, stmt := range statements {
		m := createTablePattern.FindStringSubmatch(stmt)
		if m == nil {
			continue
		}
		cols := map[string]bool{}
		for _, line := range strings.Split(m[2], ",") {
			fields := strings.Fields(line)
			if len(fields) < 2 {
				continue
			}
			first := strings.ToUpper(fields[0])
			if first == "PRIMARY" || first == "FOREIGN" || first == "UNIQUE" || first == "CHECK" {
				continue
			}
			cols[fields[0]] = true
		}
		tables[m[1]] = cols
	}
	return tables
}

// The store queries name these columns; a table shipped without one of
// them fails on the first read or write after migrating.
func TestSchemaCoversStoreColumns(t *testing.T) {
	required := map[string][]string{
		"users":            {"id", "email", "name", "password_hash", "is_active", "is_system_account", "created_at", "updated_at"},
		"roles":            {"id", "name", "description", "created_at", "updated_at"},
		"permissions":      {"id", "name", "resource", "action", "description"},
		"role_permissions": {"role_id", "permission_id", "created_at"},
		"user_roles":       {"user_id", "role_id", "assigned_by", "assigned_at", "deleted_at"},
		"user_permissions": {"user_id", "permission_id", "assigned_by", "assigned_at", "deleted_at"},
		"sessions":         {"id", "user_id", "created_at", "expires_at", "ip", "ua"},
		"nodes":            {"id", "parent_id", "kind", "name", "size", "content_type", "storage_key", "owner_id", "created_at", "updated_at", "deleted_at"},
		"share_links":      {"id", "node_id", "token", "expires_at", "created_by", "revoked_at", "created_at"},
		"audit_logs":       {"id", "actor_id", "action", "entity", "entity_id", "detail", "created_at"},
	}

	tables := tableColumns(t)
	for table, cols := range required {
		defined, ok := tables[table]
		if !ok {
			t.Fatalf("table %s is not created by the migration", table)
		}
		for _, col := range cols {
			if !defined[col] {
				t.Fatalf("table %s is missing column %s", table, col)
			}
		}
	}
}
