// Package plan builds the ordered list of directories that make up a generated root filesystem.
package plan

import (
	"fmt"
	"path"
	"strings"
)

// Entry is a slash-separated directory path relative to the filesystem root.
type Entry string

// RootDirectories is the fixed skeleton, in creation and archive order.
var RootDirectories = []Entry{
	"bin",
	"sbin",
	"boot",
	"dev",
	"etc",
	"home",
	"lib",
	"lib64",
	"media",
	"mnt",
	"opt",
	"proc",
	"root",
	"usr",
	"usr/bin",
	"usr/include",
	"usr/lib",
	"usr/lib64",
	"usr/local",
	"usr/local/bin",
	"usr/local/include",
	"usr/local/lib",
	"usr/local/lib64",
}

// HomeDir returns the home directory entry for user.
func HomeDir(user string) Entry {
	return Entry("home/" + user)
}

// IgnoreSet holds entries excluded from materialization and archiving.
// An entry is ignored when it or any of its ancestors is in the set.
type IgnoreSet map[Entry]struct{}

// NewIgnoreSet builds an IgnoreSet from user-supplied paths.
// Leading and trailing slashes are stripped and empty values dropped.
func NewIgnoreSet(paths []string) IgnoreSet {
	set := IgnoreSet{}
	for _, p := range paths {
		p = strings.Trim(strings.TrimSpace(p), "/")
		if p == "" {
			continue
		}
		set[Entry(path.Clean(p))] = struct{}{}
	}
	return set
}

// Contains reports whether e is ignored.
func (s IgnoreSet) Contains(e Entry) bool {
	if len(s) == 0 {
		return false
	}
	p := string(e)
	for {
		if _, ok := s[Entry(p)]; ok {
			return true
		}
		i := strings.LastIndexByte(p, '/')
		if i < 0 {
			return false
		}
		p = p[:i]
	}
}

// Plan is the ordered set of directories to create and archive.
type Plan struct {
	Entries []Entry
}

// New returns the fixed root directories followed by one home directory per
// user, in input order, with ignored entries removed. Users are expected to
// have passed ValidateUser; duplicates are dropped.
func New(users []string, ignore IgnoreSet) Plan {
	entries := make([]Entry, 0, len(RootDirectories)+len(users))
	seen := make(map[Entry]bool, cap(entries))

	add := func(e Entry) {
		if seen[e] || ignore.Contains(e) {
			return
		}
		seen[e] = true
		entries = append(entries, e)
	}
	for _, e := range RootDirectories {
		add(e)
	}
	for _, u := range users {
		add(HomeDir(u))
	}
	return Plan{Entries: entries}
}

// Len returns the number of entries.
func (p Plan) Len() int {
	return len(p.Entries)
}

// ParseUsers splits a comma-separated user list. Whitespace around names is
// trimmed, empty names are dropped and duplicates keep their first position.
func ParseUsers(csv string) []string {
	var users []string
	seen := map[string]bool{}
	for _, u := range strings.Split(csv, ",") {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		users = append(users, u)
	}
	return users
}

// ValidateUser checks that user can be used as a single path segment under home/.
func ValidateUser(user string) error {
	if user == "" {
		return fmt.Errorf("empty user name")
	}
	if user == "." || user == ".." {
		return fmt.Errorf("invalid user name: %q", user)
	}
	if strings.ContainsAny(user, "/\\\x00") {
		return fmt.Errorf("user name must not contain path separators: %q", user)
	}
	return nil
}
