package models

// Batch is a group of tasks whose dependencies are all satisfied by earlier
// batches, so its members can run concurrently.
type Batch struct {
	// Index is the zero-based position of the batch in its schedule.
	Index int `json:"index"`
	// Tasks holds the members in input order.
	Tasks []Task `json:"tasks"`
	// Degraded marks the fallback batch produced when the remaining tasks
	// could not be ordered. Ordering among its members is not guaranteed.
	Degraded bool `json:"degraded,omitempty"`
}

// IDs returns the identifiers of the batch members.
func (b Batch) IDs() []TaskID {
	ids := make([]TaskID, len(b.Tasks))
	for i, t := range b.Tasks {
		ids[i] = t.ID
	}
	return ids
}

// Len returns the number of tasks in the batch.
func (b Batch) Len() int {
	return len(b.Tasks)
}

// Schedule is an ordered sequence of batches that partitions a task set.
type Schedule struct {
	Batches []Batch `json:"batches"`
	// Degraded is true when the last batch is a fallback dump of tasks
	// caught in a cycle or an unresolvable chain.
	Degraded bool `json:"degraded,omitempty"`
	// Unresolved lists the tasks placed in the fallback batch.
	Unresolved []TaskID `json:"unresolved,omitempty"`
}

// Len returns the number of batches.
func (s *Schedule) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Batches)
}

// TaskCount returns the total number of scheduled tasks.
func (s *Schedule) TaskCount() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, b := range s.Batches {
		n += len(b.Tasks)
	}
	return n
}

// BatchOf returns the index of the batch holding id, or -1.
func (s *Schedule) BatchOf(id TaskID) int {
	if s == nil {
		return -1
	}
	for i, b := range s.Batches {
		for _, t := range b.Tasks {
			if t.ID == id {
				return i
			}
		}
	}
	return -1
}

// IDs returns the batch membership as plain ID lists.
func (s *Schedule) IDs() [][]TaskID {
	if s == nil {
		return nil
	}
	out := make([][]TaskID, len(s.Batches))
	for i, b := range s.Batches {
		out[i] = b.IDs()
	}
	return out
}
