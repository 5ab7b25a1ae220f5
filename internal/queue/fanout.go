package queue

import (
	"context"
	"errors"
)

// Fanout publishes every event to all publishers and joins their errors.
type Fanout []Publisher

func (f Fanout) PublishAttendance(ctx context.Context, event AttendanceEvent) error {
	var errs []error
	for _, p := range f {
		if err := p.PublishAttendance(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
