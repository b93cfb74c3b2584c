package opusmeta

import (
	"github.com/simonhull/opusmeta/internal/types"
)

// Tags is an alias to types.Tags.
type Tags = types.Tags

// Comment is an alias to types.Comment.
type Comment = types.Comment

// Comments is an alias to types.Comments.
type Comments = types.Comments

// Chapter is an alias to types.Chapter.
type Chapter = types.Chapter
