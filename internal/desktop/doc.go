// Package desktop keeps an in-process mirror of the applications and windows
// reported by a platform.Backend and publishes typed events when they change.
//
// Every mirrored attribute is a property cell. Reads return the cached value;
// writes update the cache optimistically and are confirmed by the backend
// later. Subscribers learn about confirmed changes through events whose
// External flag says whether this process caused them.
package desktop
