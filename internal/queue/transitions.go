package queue

// transitionMap lists, per target status, the statuses an entry may advance
// from. in_progress -> waiting is a pause; completed is terminal.
var transitionMap = map[Status][]Status{
	StatusInProgress: {StatusWaiting},
	StatusCompleted:  {StatusWaiting, StatusInProgress},
	StatusWaiting:    {StatusInProgress},
}

func ValidTransition(from, to Status) bool {
	allowed, ok := transitionMap[to]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == from {
			return true
		}
	}
	return false
}
