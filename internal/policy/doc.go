// Package policy turns declarative policy documents into rules.Policy values
// and keeps the active set in a Registry.
//
// Documents are YAML or JSON:
//
//	policies:
//	  - name: tracking-defaults
//	    rules:
//	      - name: default-process-name
//	        priority: 10
//	        when: {key: tracking.ProcessName, op: unset}
//	        then:
//	          - {op: set, key: tracking.ProcessName, value: Check}
//
// Condition ops are unset, set, equals, not_equals, one_of, prefix and
// matches; all, any and not group other conditions. Action ops are set,
// default, copy (from -> key) and delete.
//
// The tracking-defaults policy is compiled into the binary and returned by
// Defaults. Watcher reloads file-based sources when they change on disk.
package policy
