package types

import (
	"iter"
	"slices"
	"strings"
)

// Comment is a single KEY=VALUE user comment.
//
// Keys are stored upper-cased. Values are arbitrary UTF-8 and may contain
// '=' or newlines.
type Comment struct {
	Key   string
	Value string
}

// String returns the comment in its on-disk "KEY=VALUE" form.
func (c Comment) String() string {
	return c.Key + "=" + c.Value
}

// Comments is the ordered user comment list of an OpusTags header.
//
// Order is preserved from the file, duplicates are allowed and key
// lookups are case-insensitive.
type Comments []Comment

// All returns an iterator over all comments in file order.
//
// Example:
//
//	for key, value := range file.Comments.All() {
//		fmt.Printf("%s=%s\n", key, value)
//	}
func (c Comments) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, cm := range c {
			if !yield(cm.Key, cm.Value) {
				return
			}
		}
	}
}

// Get returns all values for a key, in file order.
//
// Returns nil if the key is not present.
func (c Comments) Get(key string) []string {
	var values []string
	for _, cm := range c {
		if strings.EqualFold(cm.Key, key) {
			values = append(values, cm.Value)
		}
	}
	return values
}

// First returns the first value for a key, or "" if not present.
func (c Comments) First(key string) string {
	for _, cm := range c {
		if strings.EqualFold(cm.Key, key) {
			return cm.Value
		}
	}
	return ""
}

// Best returns the first non-empty value from multiple candidate keys.
//
// Useful for fields stored under different names by different taggers:
//
//	albumArtist := comments.Best("ALBUMARTIST", "ALBUM ARTIST", "ALBUM_ARTIST")
func (c Comments) Best(candidates ...string) string {
	for _, key := range candidates {
		if value := c.First(key); value != "" {
			return value
		}
	}
	return ""
}

// Has reports whether at least one comment uses key.
func (c Comments) Has(key string) bool {
	return slices.ContainsFunc(c, func(cm Comment) bool {
		return strings.EqualFold(cm.Key, key)
	})
}

// Add appends a comment. The key is upper-cased.
func (c *Comments) Add(key, value string) {
	*c = append(*c, Comment{Key: strings.ToUpper(key), Value: value})
}

// Set replaces every value of key with values.
//
// The new values take the position of the first existing occurrence, or
// are appended when the key was absent. Calling Set with no values
// deletes the key.
func (c *Comments) Set(key string, values ...string) {
	pos := slices.IndexFunc(*c, func(cm Comment) bool {
		return strings.EqualFold(cm.Key, key)
	})
	c.Delete(key)
	if len(values) == 0 {
		return
	}
	if pos < 0 {
		pos = len(*c)
	}

	key = strings.ToUpper(key)
	added := make([]Comment, len(values))
	for i, v := range values {
		added[i] = Comment{Key: key, Value: v}
	}
	*c = slices.Insert(*c, pos, added...)
}

// Delete removes every comment using key.
func (c *Comments) Delete(key string) {
	*c = slices.DeleteFunc(*c, func(cm Comment) bool {
		return strings.EqualFold(cm.Key, key)
	})
}

// Keys returns the distinct keys in order of first appearance.
func (c Comments) Keys() []string {
	var keys []string
	for _, cm := range c {
		if !slices.Contains(keys, cm.Key) {
			keys = append(keys, cm.Key)
		}
	}
	return keys
}

// Strings returns the comments in "KEY=VALUE" form.
func (c Comments) Strings() []string {
	out := make([]string, len(c))
	for i, cm := range c {
		out[i] = cm.String()
	}
	return out
}

// Clone returns an independent copy of the list.
func (c Comments) Clone() Comments {
	return slices.Clone(c)
}
