// Package domain defines the value types exchanged with the Model Health service:
// sessions, subjects, activities and their generated files, calibration progress and
// analysis job state, plus the error taxonomy every client call reports through.
//
// Every type here is a plain value. Wire-level conventions such as sentinel numbers
// for missing subject measurements never appear in this package; they are decoded
// into pointers at the client boundary.
package domain
