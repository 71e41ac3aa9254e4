package fetch

// Segment is one contiguous byte range of a resource, downloaded by one
// connection. End is inclusive.
type Segment struct {
	Index int
	Start int64
	End   int64
}

func (s Segment) Length() int64 {
	return s.End - s.Start + 1
}

// PlanSegments splits [0, totalSize) into contiguous non-overlapping
// ranges, one per connection. The last segment absorbs the remainder of
// the integer division. When the file is smaller than the connection
// count, the effective count shrinks so every segment is at least one
// byte.
func PlanSegments(totalSize int64, connections int) []Segment {
	if totalSize <= 0 {
		return nil
	}
	if connections < 1 {
		connections = 1
	}
	if int64(connections) > totalSize {
		connections = int(totalSize)
	}
	base := totalSize / int64(connections)
	segments := make([]Segment, 0, connections)
	for i := 0; i < connections; i++ {
		start := int64(i) * base
		end := start + base - 1
		if i == connections-1 {
			end = totalSize - 1
		}
		segments = append(segments, Segment{Index: i, Start: start, End: end})
	}
	return segments
}
