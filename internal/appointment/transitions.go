package appointment

// transitionMap lists, per target status, the statuses it may be entered from.
var transitionMap = map[AppointmentStatus][]AppointmentStatus{
	StatusConfirmed:  {StatusScheduled},
	StatusInProgress: {StatusConfirmed},
	StatusCompleted:  {StatusInProgress},
	StatusCancelled:  {StatusScheduled, StatusConfirmed},
}

func ValidTransition(from, to AppointmentStatus) bool {
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
