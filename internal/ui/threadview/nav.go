package threadview

import "github.com/fragmede/threadline/internal/thread"

// FindParentIndex returns the index of the comment line the comment at
// currentIdx replies to, or -1 when the parent is not on screen.
func FindParentIndex(lines []thread.Line, currentIdx int) int {
	if currentIdx < 0 || currentIdx >= len(lines) || lines[currentIdx].Node == nil {
		return -1
	}
	parentID := lines[currentIdx].Node.Parent()
	if lines[currentIdx].Kind != thread.LineComment {
		// Fold and load-more lines belong to the node they carry.
		parentID = lines[currentIdx].Node.ID
	}
	if parentID == "" {
		return -1
	}
	for i := currentIdx - 1; i >= 0; i-- {
		if lines[i].Kind == thread.LineComment && lines[i].Node.ID == parentID {
			return i
		}
	}
	return -1
}

// FindNextSiblingIndex returns the index of the next comment line at the
// same depth.
func FindNextSiblingIndex(lines []thread.Line, currentIdx int) int {
	if currentIdx < 0 || currentIdx >= len(lines) {
		return -1
	}
	depth := lines[currentIdx].Depth
	for i := currentIdx + 1; i < len(lines); i++ {
		if lines[i].Kind != thread.LineComment {
			continue
		}
		if lines[i].Depth < depth {
			return -1 // Went up in tree, no more siblings.
		}
		if lines[i].Depth == depth {
			return i
		}
	}
	return -1
}
