package memory

import (
	"context"

	"github.com/mj1618/deskmirror/internal/platform"
)

// The methods below let a Desktop serve as a snapshot source for the poll
// backend. Writes made through them are logged like accessor writes.

func (d *Desktop) SetWindowProperty(ctx context.Context, id platform.WindowID, p platform.WindowProperty, v any) error {
	return d.sourceWrite(ctx, string(id), string(p), v, func(rid string) ([]platform.Notification, error) {
		return d.setWindowLocked(id, p, v, false, rid)
	})
}

func (d *Desktop) SetAppProperty(ctx context.Context, id platform.AppID, p platform.AppProperty, v any) error {
	return d.sourceWrite(ctx, string(id), string(p), v, func(rid string) ([]platform.Notification, error) {
		return d.setAppLocked(id, p, v, false, rid)
	})
}

func (d *Desktop) SetFrontmost(ctx context.Context, id platform.AppID) error {
	return d.FrontmostApplication().Write(ctx, id)
}

func (d *Desktop) sourceWrite(ctx context.Context, entity, name string, v any, set func(rid string) ([]platform.Notification, error)) error {
	if err := d.waitWrites(ctx); err != nil {
		return err
	}
	rid := platform.RequestIDFrom(ctx)
	return d.mutate(func() ([]platform.Notification, error) {
		if d.failWrite != nil {
			return nil, d.failWrite
		}
		notes, err := set(rid)
		if err != nil {
			return nil, err
		}
		d.writes = append(d.writes, Write{Entity: entity, Property: name, Value: v, RequestID: rid})
		return notes, nil
	})
}
