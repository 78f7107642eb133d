// Package projection serves the read-side views that hang off an
// authenticated identity: public channel profiles with subscription counts
// and the viewer's watch history.
package projection
