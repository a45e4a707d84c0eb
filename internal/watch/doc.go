// Package watch re-runs a recipe when files under its watch paths change.
//
// It wraps fsnotify with the behavior a dev loop needs: recursive
// directory registration (skipping VCS, build, and dependency
// directories), debouncing of event bursts (editors emit several events
// per save), and cancellation of the in-flight run before starting the
// next one.
package watch
