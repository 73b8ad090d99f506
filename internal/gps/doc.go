// Package gps opens the serial link to the u-blox receiver and streams the
// raw bytes it sends. Two port backends exist: a termios one for Linux and
// one on go.bug.st/serial for other platforms and USB adapters it handles
// better. Decoding is left to package ubx.
package gps
